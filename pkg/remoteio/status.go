package remoteio

import "sync"

// NodeStatus is the health and mode reported in heartbeats. It's written by
// the scheduler state listeners and read by the heartbeat task.
type NodeStatus struct {
	lock         sync.Mutex
	health       Health
	mode         Mode
	vendorStatus uint8
}

// NewNodeStatus starts nominal, initializing.
func NewNodeStatus() *NodeStatus {
	return &NodeStatus{health: HealthNominal, mode: ModeInitialization}
}

// SetHealth updates the health.
func (s *NodeStatus) SetHealth(h Health) {
	s.lock.Lock()
	s.health = h
	s.lock.Unlock()
}

// SetMode updates the mode.
func (s *NodeStatus) SetMode(m Mode) {
	s.lock.Lock()
	s.mode = m
	s.lock.Unlock()
}

// SetVendorStatus updates the vendor-specific status code.
func (s *NodeStatus) SetVendorStatus(v uint8) {
	s.lock.Lock()
	s.vendorStatus = v
	s.lock.Unlock()
}

// Get returns health, mode and vendor status at once.
func (s *NodeStatus) Get() (Health, Mode, uint8) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.health, s.mode, s.vendorStatus
}
