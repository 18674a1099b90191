package classifier

import "strings"

// DefaultExchange keys the prompt used for exchanges without their own taxonomy.
const DefaultExchange = "default"

// Prompts maps a lower-case exchange name to its taxonomy prompt.
type Prompts map[string]string

const replyFormat = `
Reply with one JSON object of this shape:
{"categories": ["<category>", ...], "confidence": <number between 0 and 1>, "tokens": [{"name": "<project name or null>", "symbol": "<ticker>"}], "analysis": "<one sentence>"}

Token rules:
- Only extract a token when both the project name and the ticker symbol are present in the title.
- If the announcement is about trading pairs written as X/Y (for example "BLUR/BTC, BLUR/ETH"), do not extract tokens.
  Classify it as "uncategorized" unless another category such as "futures" clearly applies.
- Never return the same symbol twice.
- If no category applies, return ["uncategorized"].`

const baseTaxonomy = `Classify the cryptocurrency exchange announcement title into zero or more of these categories:
- "new-listing": a new asset is listed for spot trading
- "pre-market": pre-market trading of an asset before its official listing
- "futures": a new perpetual or delivery futures contract
- "delisting": an asset or trading pair is removed
- "launch-pool": a launchpool, launchpad or staking event for a new asset
- "innovation-zone": the asset is listed in the innovation or assessment zone
- "uncategorized": anything else (maintenance, campaigns, promotions, trading pair additions)
`

// DefaultPrompts returns the built-in taxonomy prompts.
func DefaultPrompts() Prompts {
	return Prompts{
		DefaultExchange: baseTaxonomy + replyFormat,
		"binance": baseTaxonomy + `
Binance specifics:
- "Binance Will List X (X)" is "new-listing". "Binance Futures Will Launch USDⓈ-M X Perpetual" is "futures".
- "Binance Will Add X on Earn, Buy Crypto, Margin" alone is "uncategorized".
- "Introducing X (X) on Binance Launchpool" is "launch-pool" and may also be "new-listing".
- "Binance Will Delist" is "delisting".` + replyFormat,
		"bitget": baseTaxonomy + `
Bitget specifics:
- "[Initial Listing] Bitget Will List X (X)" is "new-listing"; when it mentions the Innovation Zone it is also "innovation-zone".
- "Bitget pre-market trading: X (X)" is "pre-market".
- "Bitget PoolX" and "Launchpool" events are "launch-pool".
- "Bitget Futures" contract launches are "futures".` + replyFormat,
		"okx": baseTaxonomy + `
OKX specifics:
- "OKX to list X (X) for spot trading" is "new-listing".
- "OKX to list perpetual futures for X" is "futures".
- "OKX Jumpstart" events are "launch-pool".
- "OKX to delist" is "delisting".` + replyFormat,
	}
}

// For returns the prompt for an exchange, falling back to the default taxonomy.
func (p Prompts) For(exchange string) string {
	if prompt, ok := p[strings.ToLower(exchange)]; ok && strings.TrimSpace(prompt) != "" {
		return prompt
	}
	return p[DefaultExchange]
}

// Merge returns a copy of p with overrides applied. Empty overrides are ignored.
func (p Prompts) Merge(overrides map[string]string) Prompts {
	merged := make(Prompts, len(p)+len(overrides))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range overrides {
		if strings.TrimSpace(v) != "" {
			merged[strings.ToLower(k)] = v
		}
	}
	return merged
}
