// Package hrtf models head-related impulse response sets.
//
// A Set holds one left/right impulse response pair per measured Direction.
// Sets come from a SADIE II style directory of stereo WAV files or from a
// synthetic spherical-head model. Resolve maps a requested direction onto a
// measured one, either snapping to the nearest measurement or rejecting the
// request.
//
// Azimuth is in degrees counter-clockwise from the front (90 is hard left);
// elevation is in degrees above the horizontal plane.
package hrtf
