// Package board reads board description files naming the command engines
// of a SoC and their channel windows.
//
// A file holds one or more engine blocks:
//
//	# MT8173 display path
//	engine mt8173 {
//	    base = 0x10212000;
//	    event-tokens = 1024;
//	    slot-cycles = 0x3200;
//	    channel 0 { offset = 0x100; timeout = none; }
//	    channel 1 { offset = 0x180; timeout = 1000ms; priority = 1; }
//	}
//
// Engine keys are base, event-tokens, slot-cycles, addr-shift, channels,
// reset-polls and reset-interval. Channel keys are offset, timeout and
// priority. When channels is given, channel blocks are optional and override
// the default window of their index; otherwise every index from 0 must have a
// block. Unknown keys are errors carrying the file position.
package board
