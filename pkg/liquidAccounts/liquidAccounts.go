// Package liquidAccounts implements the address-derivation and signing capability that lets
// a secp256k1 (EVM) key control an account on the target ledger.
//
// A liquid account is a logic-signature escrow: a fixed program with the 20-byte source
// address embedded in it. The target address is the program hash, so it is a pure function
// of the source address. Transactions are authorized by a single EIP-712 signature over the
// ids of every transaction selected in a group; the signature and the packed id list are
// passed to the program as arguments.
package liquidAccounts

import (
	"bytes"
	"context"
	"encoding/hex"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultDomainName    = "Liquid Accounts"
	DefaultDomainVersion = "1"

	PrimaryType = "AlgorandTransactionGroup"

	signatureLength = 65
)

// programTemplate is the compiled verifier program. The 20 zero bytes starting at
// addressOffset are replaced by the source address.
var programTemplate = mustDecodeHex(
	"0a" + // version
		"8014" + "0000000000000000000000000000000000000000" + // pushbytes <source address>
		"2d" + "8100" + "c1" + // arg 0: signature
		"2d" + "8101" + "c1" + // arg 1: packed transaction ids
		"31" + "17" + // txn TxID
		"e7" + "14" + "12" + "10" + "43", // contains; ecdsa recover compare; &&; return
)

const addressOffset = 3

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// SignTypedDataFunc asks the source-chain wallet for a typed-data signature. It is supplied
// by the caller so the SDK never talks to a provider directly.
type SignTypedDataFunc func(ctx context.Context, typedData apitypes.TypedData) ([]byte, error)

// ILiquidAccounts is the capability the bridge consumes.
type ILiquidAccounts interface {
	DeriveAddress(ctx context.Context, sourceAddress string) (string, error)
	SignTransactions(ctx context.Context, sourceAddress string, txns []sdktypes.Transaction, indexesToSign []int, signFn SignTypedDataFunc) ([][]byte, error)
}

type Config struct {
	// ChainId is the virtual EVM chain id placed in the EIP-712 domain.
	ChainId       uint64
	DomainName    string
	DomainVersion string
}

type LiquidAccounts struct {
	config *Config
	logger *zap.Logger
}

var _ ILiquidAccounts = (*LiquidAccounts)(nil)

func New(cfg *Config, logger *zap.Logger) (*LiquidAccounts, error) {
	if cfg == nil {
		return nil, errors.New("liquid accounts config cannot be nil")
	}
	if cfg.ChainId == 0 {
		return nil, errors.New("chain id cannot be zero")
	}
	c := *cfg
	if c.DomainName == "" {
		c.DomainName = DefaultDomainName
	}
	if c.DomainVersion == "" {
		c.DomainVersion = DefaultDomainVersion
	}
	return &LiquidAccounts{config: &c, logger: logger}, nil
}

// Program returns the verifier program bound to sourceAddress.
func Program(sourceAddress string) ([]byte, error) {
	if !common.IsHexAddress(sourceAddress) {
		return nil, errors.Errorf("invalid source address %q", sourceAddress)
	}
	addr := common.HexToAddress(sourceAddress)

	program := make([]byte, len(programTemplate))
	copy(program, programTemplate)
	copy(program[addressOffset:addressOffset+common.AddressLength], addr.Bytes())
	return program, nil
}

func escrowAddress(program []byte) (sdktypes.Address, error) {
	lsa, err := crypto.MakeLogicSigAccountEscrowChecked(program, nil)
	if err != nil {
		return sdktypes.Address{}, errors.Wrap(err, "failed to build logic signature account")
	}
	addr, err := lsa.Address()
	if err != nil {
		return sdktypes.Address{}, errors.Wrap(err, "failed to compute logic signature address")
	}
	return addr, nil
}

// DeriveAddress returns the target-ledger address controlled by sourceAddress.
func (la *LiquidAccounts) DeriveAddress(ctx context.Context, sourceAddress string) (string, error) {
	program, err := Program(sourceAddress)
	if err != nil {
		return "", err
	}
	addr, err := escrowAddress(program)
	if err != nil {
		return "", errors.Wrapf(err, "failed to derive address for %s", sourceAddress)
	}
	return addr.String(), nil
}

// TypedDataForGroup builds the EIP-712 message covering the ids of the selected transactions.
func (la *LiquidAccounts) TypedDataForGroup(txns []sdktypes.Transaction, indexesToSign []int) (apitypes.TypedData, []byte, error) {
	ids := make([]interface{}, 0, len(indexesToSign))
	packed := make([]byte, 0, len(indexesToSign)*32)
	for _, idx := range indexesToSign {
		if idx < 0 || idx >= len(txns) {
			return apitypes.TypedData{}, nil, errors.Errorf("index %d out of range for group of %d", idx, len(txns))
		}
		id := crypto.TransactionID(txns[idx])
		ids = append(ids, hexutil.Encode(id))
		packed = append(packed, id...)
	}

	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			PrimaryType: {
				{Name: "txIds", Type: "bytes32[]"},
			},
		},
		PrimaryType: PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:    la.config.DomainName,
			Version: la.config.DomainVersion,
			ChainId: math.NewHexOrDecimal256(int64(la.config.ChainId)),
		},
		Message: apitypes.TypedDataMessage{
			"txIds": ids,
		},
	}
	return td, packed, nil
}

// SignTransactions authorizes the transactions at indexesToSign with one call to signFn and
// returns one encoded signed transaction per index, in index order.
func (la *LiquidAccounts) SignTransactions(
	ctx context.Context,
	sourceAddress string,
	txns []sdktypes.Transaction,
	indexesToSign []int,
	signFn SignTypedDataFunc,
) ([][]byte, error) {
	if len(indexesToSign) == 0 {
		return [][]byte{}, nil
	}
	if signFn == nil {
		return nil, errors.New("sign function cannot be nil")
	}

	program, err := Program(sourceAddress)
	if err != nil {
		return nil, err
	}
	lsigAddr, err := escrowAddress(program)
	if err != nil {
		return nil, err
	}

	typedData, packedIds, err := la.TypedDataForGroup(txns, indexesToSign)
	if err != nil {
		return nil, err
	}

	sig, err := signFn(ctx, typedData)
	if err != nil {
		return nil, err
	}
	if len(sig) != signatureLength {
		return nil, errors.Errorf("unexpected signature length %d", len(sig))
	}

	blobs := make([][]byte, 0, len(indexesToSign))
	for _, idx := range indexesToSign {
		stx := sdktypes.SignedTxn{
			Txn: txns[idx],
			Lsig: sdktypes.LogicSig{
				Logic: program,
				Args:  [][]byte{sig, packedIds},
			},
		}
		if txns[idx].Sender != lsigAddr {
			stx.AuthAddr = lsigAddr
		}
		blobs = append(blobs, msgpack.Encode(stx))
	}

	la.logger.Sugar().Debugw("Signed transaction group",
		"source", sourceAddress,
		"target", lsigAddr.String(),
		"signed", len(blobs),
		"groupSize", len(txns),
	)
	return blobs, nil
}

// RecoverSigner returns the source address that produced sig over typedData.
func RecoverSigner(typedData apitypes.TypedData, sig []byte) (common.Address, error) {
	if len(sig) != signatureLength {
		return common.Address{}, errors.Errorf("unexpected signature length %d", len(sig))
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to hash typed data")
	}
	normalized := bytes.Clone(sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to recover public key")
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
