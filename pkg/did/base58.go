package did

import "fmt"

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var base58Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base58Alphabet); i++ {
		idx[base58Alphabet[i]] = int8(i)
	}
	return idx
}()

// base58Encode encodes input using the Bitcoin alphabet. Leading zero
// bytes become leading '1' characters.
func base58Encode(input []byte) string {
	zeros := 0
	for zeros < len(input) && input[zeros] == 0 {
		zeros++
	}

	// log(256)/log(58) ~= 1.37
	digits := make([]byte, 0, len(input)*138/100+1)
	for _, b := range input[zeros:] {
		carry := int(b)
		for i := range digits {
			carry += int(digits[i]) << 8
			digits[i] = byte(carry % 58)
			carry /= 58
		}
		for carry > 0 {
			digits = append(digits, byte(carry%58))
			carry /= 58
		}
	}

	out := make([]byte, zeros+len(digits))
	for i := 0; i < zeros; i++ {
		out[i] = '1'
	}
	for i, d := range digits {
		out[len(out)-1-i] = base58Alphabet[d]
	}
	return string(out)
}

// base58Decode reverses base58Encode.
func base58Decode(input string) ([]byte, error) {
	ones := 0
	for ones < len(input) && input[ones] == '1' {
		ones++
	}

	bytesLE := make([]byte, 0, len(input)*733/1000+1)
	for i := ones; i < len(input); i++ {
		v := base58Index[input[i]]
		if v < 0 {
			return nil, fmt.Errorf("invalid base58 character %q at offset %d", input[i], i)
		}
		carry := int(v)
		for j := range bytesLE {
			carry += int(bytesLE[j]) * 58
			bytesLE[j] = byte(carry)
			carry >>= 8
		}
		for carry > 0 {
			bytesLE = append(bytesLE, byte(carry))
			carry >>= 8
		}
	}

	out := make([]byte, ones+len(bytesLE))
	for i, b := range bytesLE {
		out[len(out)-1-i] = b
	}
	return out, nil
}
