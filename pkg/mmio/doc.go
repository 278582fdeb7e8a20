// Package mmio defines the 32-bit register bus the command engine drives and
// an in-memory SimBus for tests and simulation.
//
// Real platforms provide a Bus backed by a mapped register window; everything
// above this package only sees offsets relative to the block base.
package mmio
