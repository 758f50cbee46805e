// Copyright 2025 The tongji-blockchain Authors
// This file is part of the tongji-blockchain library.
//
// The tongji-blockchain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The tongji-blockchain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the tongji-blockchain library. If not, see <http://www.gnu.org/licenses/>.

package core

import "github.com/ReisenCW/tongji-blockchain/core/types"

// NewTxsEvent is posted when a batch of transactions enters the pool.
type NewTxsEvent struct{ Txs types.Transactions }

// ChainHeadEvent is posted when a new block becomes the chain head.
type ChainHeadEvent struct{ Block *types.Block }
