package webhooks

import "menusync/src/types"

// Platform bundles how one delivery platform authenticates and shapes its
// webhooks.
type Platform struct {
	Name     types.Platform
	Verifier Verifier
	Parser   Parser
}

func Careem() Platform {
	return Platform{
		Name: types.PLATFORM_CAREEM,
		Verifier: AllOf{
			StaticKeyVerifier{Service: types.SERVICE_CAREEM, Headers: []string{"X-Careem-Api-Key"}},
			HMACVerifier{Service: types.SERVICE_CAREEM, Header: "X-Careem-Signature"},
		},
		Parser: CareemParser{},
	}
}

func Talabat() Platform {
	return Platform{
		Name: types.PLATFORM_TALABAT,
		Verifier: StaticKeyVerifier{
			Service: types.SERVICE_TALABAT,
			Headers: []string{"Authorization", "X-Talabat-API-Key"},
		},
		Parser: TalabatParser{},
	}
}

func Lookup(name types.Platform) (Platform, bool) {
	switch name {
	case types.PLATFORM_CAREEM:
		return Careem(), true
	case types.PLATFORM_TALABAT:
		return Talabat(), true
	}
	return Platform{}, false
}
