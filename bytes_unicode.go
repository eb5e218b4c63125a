package gpt2_bpe

// bytesToUnicode builds the byte-level alphabet: printable bytes map to
// themselves, and the remaining 68 bytes map in order to runes from 256
// upwards. Every byte gets a distinct single-rune symbol.
func bytesToUnicode() (byteToRune [256]rune, runeToByte map[rune]byte) {
	runeToByte = make(map[rune]byte, 256)
	printable := [256]bool{}
	for b := '!'; b <= '~'; b++ {
		printable[b] = true
	}
	for b := '¡'; b <= '¬'; b++ {
		printable[b] = true
	}
	for b := '®'; b <= 'ÿ'; b++ {
		printable[b] = true
	}
	uct := 0
	for b := 0; b < 256; b++ {
		if printable[b] {
			byteToRune[b] = rune(b)
		} else {
			byteToRune[b] = rune(256 + uct)
			uct++
		}
		runeToByte[byteToRune[b]] = byte(b)
	}
	return byteToRune, runeToByte
}

var byteToRune, runeToByte = bytesToUnicode()

// ByteSymbol returns the one-rune symbol that stands for b.
func ByteSymbol(b byte) string {
	return string(byteToRune[b])
}

// ToSymbols re-expresses raw text in the byte-level alphabet.
func ToSymbols(text string) string {
	runes := make([]rune, len(text))
	for idx := 0; idx < len(text); idx++ {
		runes[idx] = byteToRune[text[idx]]
	}
	return string(runes)
}

// FromSymbols reverses ToSymbols. ok is false if symbols holds a rune
// outside the byte-level alphabet.
func FromSymbols(symbols string) (text []byte, ok bool) {
	text = make([]byte, 0, len(symbols))
	for _, r := range symbols {
		b, found := runeToByte[r]
		if !found {
			return nil, false
		}
		text = append(text, b)
	}
	return text, true
}
