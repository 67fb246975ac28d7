package advert

// MAC is a Bluetooth device address in the little-endian order the radio
// reports it: MAC[0] is the least significant byte.
type MAC [6]byte

// String formats the address most significant byte first, 11:22:33:AA:BB:CC.
func (m MAC) String() string {
	buf := make([]byte, 0, 17)
	for i := 5; i >= 0; i-- {
		if i != 5 {
			buf = append(buf, ':')
		}
		buf = append(buf, hexDigit(m[i]>>4), hexDigit(m[i]&0x0F))
	}
	return string(buf)
}

// LocalName returns NamePrefix followed by address bytes 2, 1 and 0.
func LocalName(addr MAC) string {
	return NamePrefix + NameSuffix(addr)
}

// NameSuffix renders the three low address bytes as "HH:HH:HH", highest first.
func NameSuffix(addr MAC) string {
	return string([]byte{
		hexDigit(addr[2] >> 4), hexDigit(addr[2] & 0x0F), ':',
		hexDigit(addr[1] >> 4), hexDigit(addr[1] & 0x0F), ':',
		hexDigit(addr[0] >> 4), hexDigit(addr[0] & 0x0F),
	})
}

// hexDigit maps a nibble to ASCII as n + '0' + (n/10)*7. Values 10..15 land
// on 'A'..'F' only because '0'+10+7 == 'A'. Deployed peer apps match on the
// resulting names, so the arithmetic is kept as is.
func hexDigit(n byte) byte {
	return n + '0' + (n/10)*7
}
