// Package watchdog resets the bridge when its loop stalls.
//
// The bridge kicks its watchdog once per iteration. [Software] runs a
// recovery action in-process, [Device] hands the job to the Linux hardware
// watchdog so a hung process reboots the machine, and [Nop] disables
// supervision.
package watchdog
