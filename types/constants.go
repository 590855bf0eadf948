package types

// Ledger constants. The genesis account holds the entire supply at the
// start of time; the landing and faucet accounts are reserved supply that
// available_supply subtracts out.
var (
	GenesisAccount = mustUnionHex("E89208DD038FBB269987689621D52292AE9C35941A7484756ECCED92A65093BA")
	LandingAccount = mustUnionHex("059F68AAB29DE0D3A27443625C7EA9CDDB6517A8B76FE37727EF6A4D76832AD5")
	FaucetAccount  = mustUnionHex("8E319CE6F3025E5B2DF66DA7AB1467FE48F1679C13DD43BFDB29FA2E9FC40D3B")

	// GenesisAmount is 2^128 - 1.
	GenesisAmount = MaxAmount
)

func mustUnionHex(text string) Union256 {
	var u Union256
	if err := u.DecodeHex(text); err != nil {
		panic(err)
	}
	return u
}
