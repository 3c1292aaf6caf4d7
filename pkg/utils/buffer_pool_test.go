// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolIndex(t *testing.T) {
	tests := []struct {
		size int
		want int
	}{
		{1, 0},
		{minPoolSize, 0},
		{minPoolSize + 1, 1},
		{2 * minPoolSize, 1},
		{maxPoolSize, numPoolLevels - 1},
		{maxPoolSize + 1, -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, poolIndex(tt.size), "size %d", tt.size)
	}
}

func TestGetBufferSizes(t *testing.T) {
	for _, size := range []int{1, 1024, minPoolSize, minPoolSize + 1, 50 * 1024 * 1024, maxPoolSize} {
		buf := GetBuffer(size)
		assert.Len(t, buf, size)
		assert.GreaterOrEqual(t, cap(buf), size)
		PutBuffer(buf)
	}
}

func TestGetBufferOversized(t *testing.T) {
	// Larger than the biggest class: allocated directly, PutBuffer is a no-op.
	buf := GetBuffer(maxPoolSize + 1)
	assert.Len(t, buf, maxPoolSize+1)
	PutBuffer(buf)
}

func TestPutBufferForeignSlice(t *testing.T) {
	// A slice whose capacity is not a pool class must not poison the pool.
	PutBuffer(make([]byte, 1000))

	buf := GetBuffer(minPoolSize)
	assert.Equal(t, minPoolSize, cap(buf))
}
