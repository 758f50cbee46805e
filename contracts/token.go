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

package contracts

import (
	"errors"
	"fmt"

	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/core/state"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/log"
)

var (
	// ErrUnknownAccount is returned when an operation references an account
	// that does not exist in the world state.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrInsufficientBalance is returned when the sender's liquid balance
	// cannot cover the requested movement.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrZeroAmount is returned for transfers that would move nothing.
	ErrZeroAmount = errors.New("zero transfer amount")

	// ErrNotTreasury is returned when a treasury-only operation is signed by
	// any other account.
	ErrNotTreasury = errors.New("sender is not the treasury")
)

// TokenContract implements the token ledger: transfers, staking, and the
// treasury-driven slash, reward and penalty operations. Handlers mutate the
// world state through copy-in/copy-out account updates; the caller provides
// transactional rollback around them.
type TokenContract struct {
	treasury common.Address
}

// NewTokenContract returns a token contract crediting penalties to the given
// treasury address.
func NewTokenContract(treasury common.Address) *TokenContract {
	return &TokenContract{treasury: treasury}
}

// Treasury returns the address penalties are credited to.
func (c *TokenContract) Treasury() common.Address { return c.treasury }

// Transfer moves tokens from sender to the recipient, creating the recipient
// account on first touch. The sender must exist and hold the amount.
func (c *TokenContract) Transfer(st *state.StateDB, sender common.Address, p *types.TransferPayload) error {
	if p.Amount == 0 {
		return ErrZeroAmount
	}
	from := st.GetAccount(sender)
	if from == nil {
		return fmt.Errorf("%w: sender %s", ErrUnknownAccount, sender.Hex())
	}
	if from.Balance < p.Amount {
		return fmt.Errorf("%w: have %d, want %d", ErrInsufficientBalance, from.Balance, p.Amount)
	}
	from.Balance -= p.Amount
	st.UpdateAccount(from)

	// Reading after the debit keeps self-transfers consistent: the staged
	// sender copy is what a matching recipient address resolves to.
	to := st.GetOrNewAccount(p.Recipient)
	to.Balance += p.Amount
	st.UpdateAccount(to)

	log.Debug("Token transfer", "from", sender.Hex(), "to", p.Recipient.Hex(), "amount", p.Amount)
	return nil
}

// Stake converts liquid balance of the sender into stake, raising its vote
// weight.
func (c *TokenContract) Stake(st *state.StateDB, sender common.Address, p *types.StakePayload) error {
	acc := st.GetAccount(sender)
	if acc == nil {
		return fmt.Errorf("%w: sender %s", ErrUnknownAccount, sender.Hex())
	}
	if acc.Balance < p.Amount {
		return fmt.Errorf("%w: have %d, want %d", ErrInsufficientBalance, acc.Balance, p.Amount)
	}
	acc.Balance -= p.Amount
	acc.Stake += p.Amount
	st.UpdateAccount(acc)

	log.Debug("Stake deposited", "account", sender.Hex(), "amount", p.Amount, "stake", acc.Stake)
	return nil
}

// Slash burns stake of the target, clamped to what the target actually has
// staked. The burned amount is credited nowhere. Treasury only.
func (c *TokenContract) Slash(st *state.StateDB, sender common.Address, p *types.SlashPayload) error {
	if sender != c.treasury {
		return fmt.Errorf("%w: slash from %s", ErrNotTreasury, sender.Hex())
	}
	target := st.GetAccount(p.Target)
	if target == nil {
		return fmt.Errorf("%w: target %s", ErrUnknownAccount, p.Target.Hex())
	}
	amount := p.Amount
	if amount > target.Stake {
		amount = target.Stake
	}
	target.Stake -= amount
	st.UpdateAccount(target)

	log.Info("Stake slashed", "target", p.Target.Hex(), "amount", amount, "by", sender.Hex())
	return nil
}

// Reward moves tokens from the treasury to the target and adjusts the
// target's reputation. The treasury account is created if absent, so a fresh
// treasury can still hand out pure reputation rewards; token amounts above
// its balance fail. Treasury only.
func (c *TokenContract) Reward(st *state.StateDB, sender common.Address, p *types.RewardPayload) error {
	if sender != c.treasury {
		return fmt.Errorf("%w: reward from %s", ErrNotTreasury, sender.Hex())
	}
	from := st.GetOrNewAccount(sender)
	if p.Amount > 0 {
		if from.Balance < p.Amount {
			return fmt.Errorf("%w: have %d, want %d", ErrInsufficientBalance, from.Balance, p.Amount)
		}
		from.Balance -= p.Amount
	}
	st.UpdateAccount(from)

	target := st.GetOrNewAccount(p.Target)
	target.Balance += p.Amount
	target.AdjustReputation(p.ReputationDelta)
	st.UpdateAccount(target)

	log.Debug("Reward granted", "target", p.Target.Hex(), "amount", p.Amount,
		"rep", p.ReputationDelta, "reason", p.Reason)
	return nil
}

// Penalty debits the target towards the treasury, clamped to the target's
// balance, and applies the signed reputation delta. The target must exist.
// Treasury only.
func (c *TokenContract) Penalty(st *state.StateDB, sender common.Address, p *types.PenaltyPayload) error {
	if sender != c.treasury {
		return fmt.Errorf("%w: penalty from %s", ErrNotTreasury, sender.Hex())
	}
	target := st.GetAccount(p.Target)
	if target == nil {
		return fmt.Errorf("%w: target %s", ErrUnknownAccount, p.Target.Hex())
	}
	amount := p.Amount
	if amount > target.Balance {
		amount = target.Balance
	}
	target.Balance -= amount
	target.AdjustReputation(p.ReputationDelta)
	st.UpdateAccount(target)

	treasury := st.GetOrNewAccount(c.treasury)
	treasury.Balance += amount
	st.UpdateAccount(treasury)

	log.Info("Penalty applied", "target", p.Target.Hex(), "amount", amount,
		"rep", p.ReputationDelta, "reason", p.Reason)
	return nil
}
