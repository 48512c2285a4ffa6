package utils

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/davecgh/go-spew/spew"
)

var spewConfig = &spew.ConfigState{
	Indent:            " ",
	DisableCapacities: true,
	SortKeys:          true,
}

// DumpToOneLineString escapes non printable bytes as \xNN
func DumpToOneLineString(buf []byte) string {
	var sb strings.Builder
	for _, b := range buf {
		if b < 0x20 || b > 0x7f {
			fmt.Fprintf(&sb, "\\x%.2x", b)
		} else {
			sb.WriteByte(b)
		}
	}
	return sb.String()
}

func SDump(a ...interface{}) string {
	return spewConfig.Sdump(a...)
}

// LogDump dumps values only when debug logging is on, dumping big documents is slow
func LogDump(title string, a ...interface{}) {
	if log.GetLevel() <= log.DebugLevel {
		log.Debug(title + "\n" + spewConfig.Sdump(a...))
	}
}
