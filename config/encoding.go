package config

import (
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// legacy single byte encoding of strings inside scene files written by old exporters
var currentCharmap *charmap.Charmap = charmap.Windows1252

func SetEncoding(name string) error {
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if cm.String() == name {
				currentCharmap = cm
				return nil
			}
		}
	}
	return errors.Errorf("Failed to find encoding %q", name)
}

func ListEncodings() []string {
	list := make([]string, 0)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

// DecodeString keeps valid utf-8 as is and decodes anything else with the legacy charmap
func DecodeString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	s, err := currentCharmap.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
