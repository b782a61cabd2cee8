package cosekey

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"math/big"

	"github.com/ldclabs/cose/iana"
	cose_key "github.com/ldclabs/cose/key"
	"github.com/pkg/errors"
)

func ecdsaPublic(k cose_key.Key, alg int) (*ecdsa.PublicKey, error) {
	kty, err := k.GetInt(iana.KeyParameterKty)
	if err != nil || kty != iana.KeyTypeEC2 {
		return nil, errors.Wrap(ErrMalformedKey, "ECDSA algorithm requires an EC2 key")
	}

	crv, err := k.GetInt(iana.EC2KeyParameterCrv)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedKey, "missing curve")
	}

	var curve elliptic.Curve
	switch {
	case alg == iana.AlgorithmES256 && crv == iana.EllipticCurveP_256:
		curve = elliptic.P256()
	case alg == iana.AlgorithmES384 && crv == iana.EllipticCurveP_384:
		curve = elliptic.P384()
	case alg == iana.AlgorithmES512 && crv == iana.EllipticCurveP_521:
		curve = elliptic.P521()
	default:
		return nil, errors.Wrapf(ErrMalformedKey, "curve %d does not match algorithm %d", crv, alg)
	}

	x, err := k.GetBytes(iana.EC2KeyParameterX)
	if err != nil || len(x) == 0 {
		return nil, errors.Wrap(ErrMalformedKey, "missing x coordinate")
	}
	y, err := k.GetBytes(iana.EC2KeyParameterY)
	if err != nil || len(y) == 0 {
		return nil, errors.Wrap(ErrMalformedKey, "missing y coordinate")
	}

	pub := &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}
	if !curve.IsOnCurve(pub.X, pub.Y) {
		return nil, errors.Wrap(ErrMalformedKey, "point is not on the declared curve")
	}
	return pub, nil
}

func rsaPublic(k cose_key.Key) (*rsa.PublicKey, error) {
	kty, err := k.GetInt(iana.KeyParameterKty)
	if err != nil || kty != iana.KeyTypeRSA {
		return nil, errors.Wrap(ErrMalformedKey, "RS256 requires an RSA key")
	}

	n, err := k.GetBytes(iana.RSAKeyParameterN)
	if err != nil || len(n) == 0 {
		return nil, errors.Wrap(ErrMalformedKey, "missing modulus")
	}
	e, err := k.GetBytes(iana.RSAKeyParameterE)
	if err != nil || len(e) == 0 {
		return nil, errors.Wrap(ErrMalformedKey, "missing exponent")
	}

	exponent := new(big.Int).SetBytes(e)
	if !exponent.IsInt64() || exponent.Int64() <= 0 || exponent.Int64() > int64(1)<<31 {
		return nil, errors.Wrap(ErrMalformedKey, "exponent out of range")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(exponent.Int64()),
	}, nil
}

func ed25519Public(k cose_key.Key) (ed25519.PublicKey, error) {
	kty, err := k.GetInt(iana.KeyParameterKty)
	if err != nil || kty != iana.KeyTypeOKP {
		return nil, errors.Wrap(ErrMalformedKey, "EdDSA requires an OKP key")
	}

	crv, err := k.GetInt(iana.OKPKeyParameterCrv)
	if err != nil || crv != iana.EllipticCurveEd25519 {
		return nil, errors.Wrap(ErrMalformedKey, "EdDSA requires the Ed25519 curve")
	}

	x, err := k.GetBytes(iana.OKPKeyParameterX)
	if err != nil || len(x) != ed25519.PublicKeySize {
		return nil, errors.Wrap(ErrMalformedKey, "bad Ed25519 public key size")
	}
	return ed25519.PublicKey(x), nil
}
