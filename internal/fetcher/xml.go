package fetcher

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// XMLOptions selects the elements StreamXML decodes.
type XMLOptions struct {
	// Element is a local name, matched at any depth and in any namespace
	// (KML 2.2 and unqualified Placemarks alike).
	Element string
	// Lenient accepts HTML entities and unclosed HTML tags. Desktop GIS
	// exports embed both in KML descriptions.
	Lenient bool
}

// StreamXML decodes each opts.Element into T. Documents declaring a
// non-UTF-8 charset are transcoded. The caller must drain the item channel
// before reading the error channel.
func StreamXML[T any](ctx context.Context, r io.Reader, opts XMLOptions) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		dec := newXMLDecoder(r, opts.Lenient)
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xml: context cancelled")
				return
			}

			tok, err := dec.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "xml: read token")
				return
			}

			start, ok := tok.(xml.StartElement)
			if !ok || start.Name.Local != opts.Element {
				continue
			}

			var item T
			if err := dec.DecodeElement(&item, &start); err != nil {
				errCh <- eris.Wrapf(err, "xml: decode %s", opts.Element)
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xml: context cancelled")
				return
			}
		}
	}()

	return outCh, errCh
}

func newXMLDecoder(r io.Reader, lenient bool) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	if lenient {
		dec.Strict = false
		dec.AutoClose = xml.HTMLAutoClose
		dec.Entity = xml.HTMLEntity
	}
	return dec
}
