package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/site-analysis/internal/model"
)

// Fingerprint identifies a computation by its kind, site coordinate, radius,
// and parameters. The site ID is not part of it: two sites at the same
// place share results. Keys are prefixed with kind and a slash.
func Fingerprint(kind string, site model.Site, params any) (string, error) {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(site.Center.X, 'g', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(site.Center.Y, 'g', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(site.Radius, 'g', -1, 64)))
	h.Write([]byte{0})
	if params != nil {
		p, err := json.Marshal(params)
		if err != nil {
			return "", eris.Wrap(err, "analysis: fingerprint params")
		}
		h.Write(p)
	}
	return kind + "/" + hex.EncodeToString(h.Sum(nil)), nil
}
