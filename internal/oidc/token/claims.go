package token

import (
	"bytes"
	"encoding/json"
	"maps"
	"math"
	"slices"
	"time"
)

// registered claim names mapped onto typed Claims fields.
var registered = []string{"iss", "sub", "aud", "exp", "iat", "nonce", "email", "name"}

// NumericDate is a JSON numeric date in seconds since the epoch. Fractional
// seconds are kept.
type NumericDate float64

// UnmarshalJSON accepts integer and fractional numbers.
func (n *NumericDate) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}

	*n = NumericDate(f)

	return nil
}

// Time converts the date into a time.Time.
func (n NumericDate) Time() time.Time {
	sec, frac := math.Modf(float64(n))

	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// Audience is the "aud" claim, a single string or an array of strings.
type Audience []string

// UnmarshalJSON accepts a string or a string array.
func (a *Audience) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = Audience{s}

		return nil
	}

	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}

	*a = list

	return nil
}

// Contains reports whether aud lists v.
func (a Audience) Contains(v string) bool {
	return slices.Contains(a, v)
}

// Claims is the verified payload of an ID token. Registered claims are typed,
// everything else is kept in Extra. It marshals back to one flat object.
type Claims struct {
	Issuer   string      `json:"iss,omitempty"`
	Subject  string      `json:"sub,omitempty"`
	Audience Audience    `json:"aud,omitempty"`
	Expiry   NumericDate `json:"exp,omitempty"`
	IssuedAt NumericDate `json:"iat,omitempty"`
	Nonce    string      `json:"nonce,omitempty"`
	Email    string      `json:"email,omitempty"`
	Name     string      `json:"name,omitempty"`

	// Extra holds provider specific claims like email_verified or groups.
	Extra map[string]any `json:"-"`

	// audString records a single string "aud" so it marshals back unchanged.
	audString bool
	// present lists the registered claims found in the payload, empty or not.
	present map[string]bool
}

// claimsFields is Claims without its json methods.
type claimsFields Claims

// UnmarshalJSON decodes a flat claim object.
func (c *Claims) UnmarshalJSON(b []byte) error {
	var fields claimsFields
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*c = Claims(fields)

	if aud, ok := raw["aud"]; ok {
		c.audString = bytes.HasPrefix(bytes.TrimSpace(aud), []byte(`"`))
	}

	for _, name := range registered {
		if _, ok := raw[name]; ok {
			if c.present == nil {
				c.present = make(map[string]bool, len(registered))
			}

			c.present[name] = true
			delete(raw, name)
		}
	}

	if len(raw) == 0 {
		return nil
	}

	c.Extra = make(map[string]any, len(raw))

	for k, v := range raw {
		// numbers stay json.Number so large integers keep their precision
		dec := json.NewDecoder(bytes.NewReader(v))
		dec.UseNumber()

		var val any
		if err := dec.Decode(&val); err != nil {
			return err
		}

		c.Extra[k] = val
	}

	return nil
}

// MarshalJSON encodes the claims as one flat object.
func (c Claims) MarshalJSON() ([]byte, error) {
	out := c.Map()

	return json.Marshal(out)
}

// Map returns all claims as a flat map.
func (c *Claims) Map() map[string]any {
	out := make(map[string]any, len(c.Extra)+len(registered))
	maps.Copy(out, c.Extra)

	set := func(name, v string) {
		if v != "" || c.present[name] {
			out[name] = v
		}
	}

	set("iss", c.Issuer)
	set("sub", c.Subject)
	set("nonce", c.Nonce)
	set("email", c.Email)
	set("name", c.Name)

	switch {
	case len(c.Audience) == 1 && c.audString:
		out["aud"] = c.Audience[0]
	case len(c.Audience) > 0 || c.present["aud"]:
		out["aud"] = append([]string{}, c.Audience...)
	}

	if c.Expiry != 0 || c.present["exp"] {
		out["exp"] = float64(c.Expiry)
	}

	if c.IssuedAt != 0 || c.present["iat"] {
		out["iat"] = float64(c.IssuedAt)
	}

	return out
}

// PrettyJSON returns the claims as indented JSON with sorted keys.
func (c *Claims) PrettyJSON() string {
	b, err := json.MarshalIndent(c.Map(), "", "    ")
	if err != nil {
		return "{}"
	}

	return string(b)
}
