package mint

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"

	"github.com/ldclabs/cose/iana"
	cose_key "github.com/ldclabs/cose/key"
)

// COSE key builders for the public halves of test keys.

func ES256Key(pub *ecdsa.PublicKey) cose_key.Key {
	return cose_key.Key{
		iana.KeyParameterKty:    iana.KeyTypeEC2,
		iana.KeyParameterAlg:    iana.AlgorithmES256,
		iana.EC2KeyParameterCrv: iana.EllipticCurveP_256,
		iana.EC2KeyParameterX:   padCoordinate(pub.X.Bytes(), 32),
		iana.EC2KeyParameterY:   padCoordinate(pub.Y.Bytes(), 32),
	}
}

func RS256Key(pub *rsa.PublicKey) cose_key.Key {
	return cose_key.Key{
		iana.KeyParameterKty:  iana.KeyTypeRSA,
		iana.KeyParameterAlg:  iana.AlgorithmRS256,
		iana.RSAKeyParameterN: pub.N.Bytes(),
		iana.RSAKeyParameterE: bigEndianExponent(pub.E),
	}
}

func Ed25519Key(pub ed25519.PublicKey) cose_key.Key {
	return cose_key.Key{
		iana.KeyParameterKty:    iana.KeyTypeOKP,
		iana.KeyParameterAlg:    iana.AlgorithmEdDSA,
		iana.OKPKeyParameterCrv: iana.EllipticCurveEd25519,
		iana.OKPKeyParameterX:   []byte(pub),
	}
}

func padCoordinate(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

func bigEndianExponent(e int) []byte {
	out := []byte{}
	for e > 0 {
		out = append([]byte{byte(e & 0xff)}, out...)
		e >>= 8
	}
	if len(out) == 0 {
		out = []byte{0}
	}
	return out
}
