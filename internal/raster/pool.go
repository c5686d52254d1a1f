// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package raster

import (
	"sync"
)

// Pools of constant sized byte slices, keyed by size, for read buffers
var poolByte = struct {
	sync.RWMutex
	m map[int]*sync.Pool
}{m: make(map[int]*sync.Pool)}

// Returns a pool for []byte slices of the given size
func getSizedPoolByte(size int) *sync.Pool {
	poolByte.RLock()
	pool := poolByte.m[size]
	poolByte.RUnlock()
	if pool != nil {
		return pool
	}
	poolByte.Lock()
	defer poolByte.Unlock()
	if pool = poolByte.m[size]; pool == nil {
		pool = &sync.Pool{
			New: func() interface{} {
				return make([]byte, size)
			},
		}
		poolByte.m[size] = pool
	}
	return pool
}

// Retrieves a slice of given size from the pool
func getBytesFromPool(size int) []byte {
	return getSizedPoolByte(size).Get().([]byte)
}

// Returns a slice to the pool of its capacity
func putBytesIntoPool(arr []byte) {
	getSizedPoolByte(cap(arr)).Put(arr[:cap(arr)])
}
