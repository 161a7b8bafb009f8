package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/minesite-cli/internal/model"
)

// encodeSite splits a site into a JSON body without its location and the
// location as EWKB.
func encodeSite(s model.ResolvedSite) (body, location []byte, err error) {
	location, err = encodePoint(s.Location)
	if err != nil {
		return nil, nil, err
	}
	s.Location = nil
	body, err = json.Marshal(s)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal site")
	}
	return body, location, nil
}

func decodeSite(body, location []byte) (model.ResolvedSite, error) {
	var s model.ResolvedSite
	if err := json.Unmarshal(body, &s); err != nil {
		return s, eris.Wrap(err, "store: unmarshal site")
	}
	loc, err := decodePoint(location)
	if err != nil {
		return s, err
	}
	s.Location = loc
	return s, nil
}

func encodeSummary(summary model.RunSummary) ([]byte, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal summary")
	}
	return data, nil
}

func decodeSummary(data []byte) (*model.RunSummary, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var summary model.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal summary")
	}
	return &summary, nil
}
