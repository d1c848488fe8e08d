package nbt

import (
	"errors"
	"io"
	"math"
	"reflect"
	"strings"
)

func Marshal(w io.Writer, v interface{}) error {
	return NewEncoder(w).Encode(v)
}

type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes v as an unnamed root tag. v is usually a struct, which becomes the root
// compound.
func (e *Encoder) Encode(v interface{}) error {
	return e.marshal(reflect.ValueOf(v), "")
}

func (e *Encoder) marshal(val reflect.Value, tagName string) error {
	switch vk := val.Kind(); vk {
	default:
		return errors.New("nbt: unsupported type " + vk.String() + " for tag " + tagName)

	case reflect.Bool:
		if err := e.writeTag(TagByte, tagName); err != nil {
			return err
		}
		var b byte
		if val.Bool() {
			b = 1
		}
		_, err := e.w.Write([]byte{b})
		return err

	case reflect.Int8:
		if err := e.writeTag(TagByte, tagName); err != nil {
			return err
		}
		_, err := e.w.Write([]byte{byte(val.Int())})
		return err

	case reflect.Uint8:
		if err := e.writeTag(TagByte, tagName); err != nil {
			return err
		}
		_, err := e.w.Write([]byte{byte(val.Uint())})
		return err

	case reflect.Int16, reflect.Uint16:
		if err := e.writeTag(TagShort, tagName); err != nil {
			return err
		}
		return e.writeInt16(int16(intOf(val)))

	case reflect.Int32, reflect.Uint32, reflect.Int:
		if err := e.writeTag(TagInt, tagName); err != nil {
			return err
		}
		return e.writeInt32(int32(intOf(val)))

	case reflect.Int64, reflect.Uint64:
		if err := e.writeTag(TagLong, tagName); err != nil {
			return err
		}
		return e.writeInt64(intOf(val))

	case reflect.Float32:
		if err := e.writeTag(TagFloat, tagName); err != nil {
			return err
		}
		return e.writeInt32(int32(math.Float32bits(float32(val.Float()))))

	case reflect.Float64:
		if err := e.writeTag(TagDouble, tagName); err != nil {
			return err
		}
		return e.writeInt64(int64(math.Float64bits(val.Float())))

	case reflect.String:
		if err := e.writeTag(TagString, tagName); err != nil {
			return err
		}
		return e.writeString(val.String())

	case reflect.Array, reflect.Slice:
		return e.marshalArray(val, tagName)

	case reflect.Struct:
		if err := e.writeTag(TagCompound, tagName); err != nil {
			return err
		}
		return e.marshalStruct(val)

	case reflect.Ptr, reflect.Interface:
		if val.IsNil() {
			return errors.New("nbt: nil value for tag " + tagName)
		}
		return e.marshal(val.Elem(), tagName)
	}
}

func intOf(val reflect.Value) int64 {
	switch val.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(val.Uint())
	}
	return val.Int()
}

func (e *Encoder) marshalArray(val reflect.Value, tagName string) error {
	n := val.Len()
	switch elem := val.Type().Elem(); elem.Kind() {
	case reflect.Uint8:
		if err := e.writeTag(TagByteArray, tagName); err != nil {
			return err
		}
		if err := e.writeInt32(int32(n)); err != nil {
			return err
		}
		buf := make([]byte, n)
		reflect.Copy(reflect.ValueOf(buf), val)
		_, err := e.w.Write(buf)
		return err

	case reflect.Int32:
		if err := e.writeTag(TagIntArray, tagName); err != nil {
			return err
		}
		if err := e.writeInt32(int32(n)); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := e.writeInt32(int32(val.Index(i).Int())); err != nil {
				return err
			}
		}
		return nil

	case reflect.Int64:
		if err := e.writeTag(TagLongArray, tagName); err != nil {
			return err
		}
		if err := e.writeInt32(int32(n)); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := e.writeInt64(val.Index(i).Int()); err != nil {
				return err
			}
		}
		return nil

	case reflect.Struct:
		if err := e.writeListHeader(tagName, TagCompound, n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := e.marshalStruct(val.Index(i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.String:
		if err := e.writeListHeader(tagName, TagString, n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := e.writeString(val.Index(i).String()); err != nil {
				return err
			}
		}
		return nil

	default:
		return errors.New("nbt: unsupported slice type " + val.Type().String() + " for tag " + tagName)
	}
}

func (e *Encoder) marshalStruct(val reflect.Value) error {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		name, omitEmpty := parseTag(f)
		if name == "-" {
			continue
		}
		fv := val.Field(i)
		if omitEmpty && isEmpty(fv) {
			continue
		}
		if err := e.marshal(fv, name); err != nil {
			return err
		}
	}
	_, err := e.w.Write([]byte{TagEnd})
	return err
}

func parseTag(f reflect.StructField) (name string, omitEmpty bool) {
	name = f.Name
	tag := f.Tag.Get("nbt")
	if tag == "" {
		return
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return
}

func isEmpty(val reflect.Value) bool {
	switch val.Kind() {
	case reflect.Slice, reflect.Map, reflect.String:
		return val.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return val.IsNil()
	}
	return false
}

func (e *Encoder) writeListHeader(tagName string, elemType byte, n int) error {
	if err := e.writeTag(TagList, tagName); err != nil {
		return err
	}
	if n == 0 {
		elemType = TagEnd
	}
	if _, err := e.w.Write([]byte{elemType}); err != nil {
		return err
	}
	return e.writeInt32(int32(n))
}

func (e *Encoder) writeTag(tagType byte, tagName string) error {
	if _, err := e.w.Write([]byte{tagType}); err != nil {
		return err
	}
	return e.writeString(tagName)
}

func (e *Encoder) writeString(s string) error {
	if err := e.writeInt16(int16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, s)
	return err
}

func (e *Encoder) writeInt16(n int16) error {
	_, err := e.w.Write([]byte{byte(n >> 8), byte(n)})
	return err
}

func (e *Encoder) writeInt32(n int32) error {
	_, err := e.w.Write([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	return err
}

func (e *Encoder) writeInt64(n int64) error {
	_, err := e.w.Write([]byte{
		byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32),
		byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	return err
}
