package repository

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-admin/internal/domain/product"
)

// encodeInput writes the request body for create and update.
func encodeInput(e *jx.Encoder, in product.Input) {
	e.ObjStart()
	e.FieldStart("title")
	e.Str(in.Title)
	e.FieldStart("price")
	e.Num(jx.Num(in.Price.String()))
	e.FieldStart("description")
	e.Str(in.Description)
	e.FieldStart("category")
	e.Str(in.Category)
	e.FieldStart("image")
	e.Str(in.Image)
	e.ObjEnd()
}

func decodeProducts(d *jx.Decoder) ([]product.Product, error) {
	out := make([]product.Product, 0, 32)
	if err := d.Arr(func(d *jx.Decoder) error {
		p, err := decodeProduct(d)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return out, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			var id int64
			id, err = decodeLenientID(d)
			p.ID = product.ID(id)
		case "title":
			p.Title, err = decodeLenientString(d)
		case "price":
			p.Price, err = decodeLenientDecimal(d)
		case "category":
			p.Category, err = decodeLenientString(d)
		case "description":
			p.Description, err = decodeLenientString(d)
		case "image":
			p.Image, err = decodeLenientString(d)
		case "rating":
			p.Rating, err = decodeRating(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return product.Product{}, errors.Wrap(err, "decode product")
	}
	return p, nil
}

func decodeRating(d *jx.Decoder) (*product.Rating, error) {
	if d.Next() != jx.Object {
		return nil, d.Skip()
	}
	var r product.Rating
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "rate":
			v, err := decodeLenientDecimal(d)
			r.Rate = v.InexactFloat64()
			return err
		case "count":
			v, err := decodeLenientDecimal(d)
			r.Count = int(v.IntPart())
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func decodeCategories(d *jx.Decoder) ([]string, error) {
	var out []string
	if err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode categories")
	}
	return out, nil
}

// decodeLenientDecimal accepts a JSON number or a numeric string. Any other
// value, including null, decodes as zero.
func decodeLenientDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, nil
		}
		return v, nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return decimal.Zero, nil
		}
		return v, nil
	default:
		return decimal.Zero, d.Skip()
	}
}

// decodeLenientID returns 0 when the value is not a positive whole number.
func decodeLenientID(d *jx.Decoder) (int64, error) {
	v, err := decodeLenientDecimal(d)
	if err != nil {
		return 0, err
	}
	if !v.IsInteger() || !v.IsPositive() {
		return 0, nil
	}
	return v.IntPart(), nil
}

func decodeLenientString(d *jx.Decoder) (string, error) {
	if d.Next() != jx.String {
		return "", d.Skip()
	}
	return d.Str()
}
