package services

import (
	"errors"
	"sync"
	"time"
)

// ErrContractUnavailable is returned by contract writes while the contract
// is degraded or disabled
var ErrContractUnavailable = errors.New("payment contract unavailable")

// ContractMode is the observable availability of the payment contract
type ContractMode string

const (
	ContractConnected ContractMode = "connected"
	ContractDegraded  ContractMode = "degraded"
	ContractDisabled  ContractMode = "disabled"
)

// ContractStatus is a snapshot of ContractState
type ContractStatus struct {
	Mode    ContractMode `json:"mode"`
	Address string       `json:"address,omitempty"`
	Reason  string       `json:"reason,omitempty"`
	Since   time.Time    `json:"since"`
}

// ContractState tracks whether contract calls can be made. A failed
// initialization puts it in degraded mode; it never pretends to be connected.
type ContractState struct {
	mu     sync.RWMutex
	status ContractStatus
	now    func() time.Time
}

// NewContractState starts in disabled mode
func NewContractState() *ContractState {
	s := &ContractState{now: time.Now}
	s.Disable("no contract address configured")
	return s
}

// Connect records a working binding
func (s *ContractState) Connect(address string) {
	s.set(ContractStatus{Mode: ContractConnected, Address: address})
}

// Degrade records a binding that failed at runtime or during setup
func (s *ContractState) Degrade(address, reason string) {
	s.set(ContractStatus{Mode: ContractDegraded, Address: address, Reason: reason})
}

// Disable records that the contract is intentionally not in use
func (s *ContractState) Disable(reason string) {
	s.set(ContractStatus{Mode: ContractDisabled, Reason: reason})
}

func (s *ContractState) set(status ContractStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Mode == status.Mode && s.status.Reason == status.Reason && s.status.Address == status.Address {
		return
	}
	status.Since = s.now()
	s.status = status
}

// Status returns the current snapshot
func (s *ContractState) Status() ContractStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Available reports whether contract calls may be attempted
func (s *ContractState) Available() bool {
	return s.Status().Mode == ContractConnected
}
