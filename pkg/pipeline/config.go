package pipeline

import (
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/skeleplex/skeleplex/pkg/errors"
)

// LoadConfig reads a TOML file over DefaultOptions, so keys the file omits
// keep their defaults. Unknown keys are rejected to catch typos.
func LoadConfig(path string) (Options, error) {
	opts := DefaultOptions()
	md, err := toml.DecodeFile(path, &opts)
	if os.IsNotExist(err) {
		return Options{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
	}
	if err != nil {
		return Options{}, errors.Wrap(errors.ErrCodeDecodeFailed, err, "config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Options{}, errors.New(errors.ErrCodeInvalidOption, "config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return opts, nil
}

// WriteConfig encodes opts as TOML, in the layout LoadConfig reads.
func WriteConfig(w io.Writer, opts Options) error {
	enc := toml.NewEncoder(w)
	enc.Indent = "  "
	return enc.Encode(opts)
}
