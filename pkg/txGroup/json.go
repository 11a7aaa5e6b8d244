package txGroup

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/liquid-signer-go/pkg/bridgeErrors"
	sdkjson "github.com/algorand/go-algorand-sdk/v2/encoding/json"
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
)

// ParseJSON reads a group from a JSON array. Elements are base64 msgpack blobs or
// transaction objects, optionally wrapped in one level of arrays for sub-groups.
func ParseJSON(data []byte) (Group, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return Group{}, bridgeErrors.Wrap(bridgeErrors.ErrInvalidTransactionGroup, "parseJSON", err)
	}

	var (
		encoding   Encoding
		seen       bool
		structured [][]sdktypes.Transaction
		encoded    [][][]byte
	)
	setEncoding := func(e Encoding) error {
		if seen && e != encoding {
			return bridgeErrors.Wrap(bridgeErrors.ErrMixedEncodings, "parseJSON", nil)
		}
		encoding, seen = e, true
		return nil
	}

	for i, el := range elements {
		items := []json.RawMessage{el}
		if isArray(el) {
			items = nil
			if err := json.Unmarshal(el, &items); err != nil {
				return Group{}, bridgeErrors.Wrap(bridgeErrors.ErrInvalidTransactionGroup, "parseJSON",
					fmt.Errorf("element %d: %w", i, err))
			}
		}

		var (
			subTxns  []sdktypes.Transaction
			subBlobs [][]byte
		)
		for _, item := range items {
			if isString(item) {
				if err := setEncoding(Encoding_Encoded); err != nil {
					return Group{}, err
				}
				var s string
				if err := json.Unmarshal(item, &s); err != nil {
					return Group{}, bridgeErrors.Wrap(bridgeErrors.ErrInvalidTransactionGroup, "parseJSON", err)
				}
				blob, err := base64.StdEncoding.DecodeString(s)
				if err != nil {
					return Group{}, bridgeErrors.Wrap(bridgeErrors.ErrInvalidTransactionGroup, "parseJSON",
						fmt.Errorf("element %d is not base64: %w", i, err))
				}
				subBlobs = append(subBlobs, blob)
				continue
			}

			if err := setEncoding(Encoding_Structured); err != nil {
				return Group{}, err
			}
			var txn sdktypes.Transaction
			if err := sdkjson.Decode(item, &txn); err != nil {
				return Group{}, bridgeErrors.Wrap(bridgeErrors.ErrInvalidTransactionGroup, "parseJSON",
					fmt.Errorf("element %d: %w", i, err))
			}
			subTxns = append(subTxns, txn)
		}

		if encoding == Encoding_Encoded {
			encoded = append(encoded, subBlobs)
		} else {
			structured = append(structured, subTxns)
		}
	}

	if encoding == Encoding_Encoded {
		return Encoded(encoded...), nil
	}
	return Structured(structured...), nil
}

func isArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}

func isString(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '"'
}

// EncodeResults renders signing results as base64 strings, keeping nil positions as null.
func EncodeResults(results [][]byte) []*string {
	out := make([]*string, len(results))
	for i, r := range results {
		if r == nil {
			continue
		}
		s := base64.StdEncoding.EncodeToString(r)
		out[i] = &s
	}
	return out
}
