package texload

import (
	"path"
	"strings"
	"sync"
)

// The package-level decoder registry. Loaders snapshot it at construction
// unless WithDecoders overrides it. texfmt registers the built-in decoders
// from an init function, so most programs just blank-import it:
//
//	import _ "github.com/gogpu/texload/texfmt"
var (
	decoderMu  sync.Mutex
	decoderReg []Decoder
)

// RegisterDecoder appends d to the package-level decoder registry.
// Decoders are consulted in registration order; the first Match wins.
func RegisterDecoder(d Decoder) {
	if d == nil {
		panic("texload: RegisterDecoder(nil)")
	}
	decoderMu.Lock()
	decoderReg = append(decoderReg, d)
	decoderMu.Unlock()
}

// registeredDecoders snapshots the registry.
func registeredDecoders() []Decoder {
	decoderMu.Lock()
	defer decoderMu.Unlock()
	out := make([]Decoder, len(decoderReg))
	copy(out, decoderReg)
	return out
}

// magicLen is how many leading bytes are offered to Decoder.Match.
const magicLen = 8

// selectDecoder picks the first decoder matching the key's extension or the
// data's leading magic bytes.
func selectDecoder(decoders []Decoder, key string, data []byte) Decoder {
	ext := strings.ToLower(path.Ext(key))
	magic := data
	if len(magic) > magicLen {
		magic = magic[:magicLen]
	}
	for _, d := range decoders {
		if d.Match(ext, magic) {
			return d
		}
	}
	return nil
}
