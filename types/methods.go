package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ToBin serializes tokens as little endian unsigned integers, 32-bit when
// useUint32 is set and 16-bit otherwise.
func (tokens Tokens) ToBin(useUint32 bool) ([]byte, error) {
	if useUint32 {
		return tokens.ToBinUint32()
	}
	return tokens.ToBinUint16()
}

func (tokens Tokens) ToBinUint16() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(tokens)*TokenSize))
	for idx := range tokens {
		bs := tokens[idx]
		if bs > 65535 {
			return nil, fmt.Errorf("integer overflow: tried to write "+
				"token ID %d as unsigned 16-bit", bs)
		}
		if err := binary.Write(buf, binary.LittleEndian,
			uint16(bs)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (tokens Tokens) ToBinUint32() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(tokens)*TokenSize32))
	for idx := range tokens {
		if err := binary.Write(buf, binary.LittleEndian,
			uint32(tokens[idx])); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// TokensFromBin reads 16-bit little endian tokens. A trailing odd byte is
// an error rather than being dropped.
func TokensFromBin(bin []byte) (Tokens, error) {
	if len(bin)%TokenSize != 0 {
		return nil, fmt.Errorf("token buffer of %d bytes is not a "+
			"multiple of %d", len(bin), TokenSize)
	}
	tokens := make(Tokens, 0, len(bin)/TokenSize)
	for idx := 0; idx < len(bin); idx += TokenSize {
		tokens = append(tokens,
			Token(binary.LittleEndian.Uint16(bin[idx:])))
	}
	return tokens, nil
}

// TokensFromBin32 reads 32-bit little endian tokens.
func TokensFromBin32(bin []byte) (Tokens, error) {
	if len(bin)%TokenSize32 != 0 {
		return nil, fmt.Errorf("token buffer of %d bytes is not a "+
			"multiple of %d", len(bin), TokenSize32)
	}
	tokens := make(Tokens, 0, len(bin)/TokenSize32)
	for idx := 0; idx < len(bin); idx += TokenSize32 {
		tokens = append(tokens,
			Token(binary.LittleEndian.Uint32(bin[idx:])))
	}
	return tokens, nil
}

// Ints converts tokens to plain ints, the form predictors consume.
func (tokens Tokens) Ints() []int {
	ints := make([]int, len(tokens))
	for idx, token := range tokens {
		ints[idx] = int(token)
	}
	return ints
}
