// Package enocean holds the primitives shared by the Eltako/EnOcean codecs:
// bus addresses, ESP2 organisation and ESP3 RORG constants, and the frame
// error family.
//
// The codecs themselves live in the esp2 and esp3 subpackages, and the
// translate subpackage converts between them.
package enocean
