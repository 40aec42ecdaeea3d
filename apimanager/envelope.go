package apimanager

import (
	"bytes"
	"regexp"

	"github.com/go-gotop/bnconnector/exchange"
	"github.com/go-gotop/bnconnector/signer"
	"github.com/go-gotop/bnconnector/utils"
)

var requestIDRe = regexp.MustCompile(`^[0-9a-f]{32}$`)

// envelope {id, method, params}
type envelope struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params *orderedParams `json:"params,omitempty"`
}

// orderedParams keeps keys in the order they were signed, with signature last.
type orderedParams struct {
	keys   []string
	values utils.Params
}

func (p *orderedParams) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := utils.Json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := utils.Json.Marshal(p.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// buildEnvelope drops empty params and applies authentication. A 32 hex "id" in payload
// is used as the request id, anything else gets a random one.
func buildEnvelope(method string, payload utils.Params, creds *signer.Credentials, signers *signer.Cache, mo messageOptions) (*envelope, error) {
	params := utils.RemoveEmptyValue(payload)

	id, _ := params["id"].(string)
	if !requestIDRe.MatchString(id) {
		id = utils.RandomString()
	}
	delete(params, "id")

	if mo.withAPIKey && !mo.skipAuth && creds != nil {
		params[exchange.APIKeyParam] = creds.APIKey
	}

	env := &envelope{ID: id, Method: method}
	if mo.signed && !mo.skipAuth {
		params[exchange.TimestampKey] = utils.Timestamp()
		sig, err := signers.Sign(creds, params)
		if err != nil {
			return nil, err
		}
		keys := append(utils.SortedKeys(params), exchange.SignatureKey)
		params[exchange.SignatureKey] = sig
		env.Params = &orderedParams{keys: keys, values: params}
		return env, nil
	}
	if len(params) > 0 {
		env.Params = &orderedParams{keys: utils.SortedKeys(params), values: params}
	}
	return env, nil
}
