// Package nbt writes Named Binary Tag data and decodes it through go-mc. Only the tag set
// used by legacy Anvil chunks is supported on the encode side.
package nbt

import (
	gomcnbt "github.com/Tnze/go-mc/nbt"
)

// Tag type ids.
const (
	TagEnd byte = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

// Unmarshal decodes uncompressed NBT data into v. Struct fields are matched by their
// `nbt` tag, unknown tags are skipped.
func Unmarshal(data []byte, v interface{}) error {
	return gomcnbt.Unmarshal(data, v)
}
