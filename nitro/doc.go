// The nitro package provides a hardware abstraction layer for the ARM9 side of
// the Nintendo DS.
//
// Its subpackages model the few peripherals the thread scheduler depends on:
// the interrupt controller, the four hardware timers and the divide/square root
// unit. They are simulated on the host, so that the portable parts of the
// system can be exercised without a console. All other devices (graphics,
// sound, cartridge, touch) are out of scope.
package nitro

// Nitro processor
// https://problemkaputt.de/gbatek.htm#dsiomaps
