package mockhba

import (
	"fmt"
	"sync"
)

// Block is a recording mptraid.BlockLayer.
type Block struct {
	mu sync.Mutex

	rescans  int
	depths   map[string]int
	buses    map[int]bool
	devices  map[string]bool
	releases int
	depthErr error
}

// NewBlock returns an empty recording block layer.
func NewBlock() *Block {
	return &Block{
		depths:  map[string]int{},
		buses:   map[int]bool{},
		devices: map[string]bool{},
	}
}

func key(bus, target int) string {
	return fmt.Sprintf("%d:%d", bus, target)
}

// RescanBus implements mptraid.BlockLayer.
func (b *Block) RescanBus(bus int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rescans++
}

// AdjustQueueDepth implements mptraid.BlockLayer.
func (b *Block) AdjustQueueDepth(bus, target, depth int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.depthErr != nil {
		return b.depthErr
	}

	b.depths[key(bus, target)] = depth

	return nil
}

// FreezeBus implements mptraid.BlockLayer.
func (b *Block) FreezeBus(bus int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buses[bus] = true
}

// ReleaseBus implements mptraid.BlockLayer.
func (b *Block) ReleaseBus(bus int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.buses, bus)
	b.releases++
}

// FreezeDevice implements mptraid.BlockLayer.
func (b *Block) FreezeDevice(bus, target int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.devices[key(bus, target)] = true
}

// ReleaseDevice implements mptraid.BlockLayer.
func (b *Block) ReleaseDevice(bus, target int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.devices, key(bus, target))
}

// FailQueueDepth makes AdjustQueueDepth return err. nil clears it.
func (b *Block) FailQueueDepth(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.depthErr = err
}

// Rescans returns how many bus rescans were requested.
func (b *Block) Rescans() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.rescans
}

// BusReleases returns how many times a bus was released.
func (b *Block) BusReleases() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.releases
}

// BusFrozen - is the bus held.
func (b *Block) BusFrozen(bus int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buses[bus]
}

// DeviceFrozen - is the target held.
func (b *Block) DeviceFrozen(bus, target int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.devices[key(bus, target)]
}

// QueueDepth returns the depth last set for bus:target, 0 if none.
func (b *Block) QueueDepth(bus, target int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.depths[key(bus, target)]
}
