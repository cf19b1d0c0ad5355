package vm

import (
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// String Primitives
// ---------------------------------------------------------------------------

func (u *Universe) installStringPrimitives(c *Class) {
	// concatenate: - a new String
	definePrimitive(c, "concatenate:", binary(func(recv, arg Value) (Value, error) {
		s, err := asText("concatenate:", recv)
		if err != nil {
			return nil, err
		}
		t, err := asText("concatenate:", arg)
		if err != nil {
			return nil, err
		}
		return String(s + t), nil
	}))

	definePrimitive(c, "asSymbol", unary(func(recv Value) (Value, error) {
		return asSymbol("asSymbol", recv)
	}))

	// length - in characters
	definePrimitive(c, "length", unary(func(recv Value) (Value, error) {
		s, err := asText("length", recv)
		if err != nil {
			return nil, err
		}
		return Integer(utf8.RuneCountInString(s)), nil
	}))

	// = - equal contents; a Symbol never equals a String here
	definePrimitive(c, "=", binary(func(recv, arg Value) (Value, error) {
		a, okA := recv.(String)
		b, okB := arg.(String)
		return u.Bool(okA && okB && a == b), nil
	}))

	// primSubstringFrom:to: - 1-based and inclusive
	definePrimitive(c, "primSubstringFrom:to:", ternary(func(recv, from, to Value) (Value, error) {
		s, err := asText("primSubstringFrom:to:", recv)
		if err != nil {
			return nil, err
		}
		start, err := asInteger("primSubstringFrom:to:", from)
		if err != nil {
			return nil, err
		}
		end, err := asInteger("primSubstringFrom:to:", to)
		if err != nil {
			return nil, err
		}
		runes := []rune(s)
		if start < 1 || end > int64(len(runes)) || start > end+1 {
			return String("Error - index out of bounds"), nil
		}
		return String(runes[start-1 : end]), nil
	}))

	// hashcode - content hash
	definePrimitive(c, "hashcode", unary(func(recv Value) (Value, error) {
		s, err := asText("hashcode", recv)
		if err != nil {
			return nil, err
		}
		return stringHash(s), nil
	}))

	// Character classes; the empty string belongs to none
	definePrimitive(c, "isWhiteSpace", unary(func(recv Value) (Value, error) {
		return u.allRunes("isWhiteSpace", recv, unicode.IsSpace)
	}))
	definePrimitive(c, "isLetters", unary(func(recv Value) (Value, error) {
		return u.allRunes("isLetters", recv, unicode.IsLetter)
	}))
	definePrimitive(c, "isDigits", unary(func(recv Value) (Value, error) {
		return u.allRunes("isDigits", recv, unicode.IsDigit)
	}))
}

func (u *Universe) allRunes(selector string, v Value, pred func(rune) bool) (Value, error) {
	s, err := asText(selector, v)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return u.False, nil
	}
	for _, r := range s {
		if !pred(r) {
			return u.False, nil
		}
	}
	return u.True, nil
}

// ---------------------------------------------------------------------------
// Symbol Primitives
// ---------------------------------------------------------------------------

func (u *Universe) installSymbolPrimitives(c *Class) {
	definePrimitive(c, "asString", unary(func(recv Value) (Value, error) {
		s, err := asText("asString", recv)
		if err != nil {
			return nil, err
		}
		return String(s), nil
	}))

	// = - identity, or a String with the same text
	definePrimitive(c, "=", binary(func(recv, arg Value) (Value, error) {
		if recv == arg {
			return u.True, nil
		}
		sym := recv.(*Symbol)
		if s, ok := arg.(String); ok {
			return u.Bool(string(s) == sym.name), nil
		}
		return u.False, nil
	}))
}
