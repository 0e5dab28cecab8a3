// Package eep implements the closed registry of EnOcean Equipment Profiles
// used on Eltako buses.
//
// A profile turns a telegram payload into a semantic Value and back:
//
//	v, err := eep.Decode(eep.MustParseID("A5-13-01"), payload)
//	payload, err := eep.Encode(id, v)
//
// Values are Binary, Scaled, Enumerated or Composite. Scaled values are
// linear transforms of raw fields; raw values outside the documented range
// are clamped and flagged rather than rejected. Decoding is pure and safe
// for concurrent use.
package eep
