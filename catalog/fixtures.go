package catalog

import (
	"time"

	"github.com/poiesic/umbratrace/core"
)

// Fixtures returns the built-in record set. LastSeen values are relative
// to now so the catalog always looks recently observed.
func Fixtures(now time.Time) []core.Record {
	hoursAgo := func(h int) time.Time {
		return now.Add(-time.Duration(h) * time.Hour).UTC()
	}

	return []core.Record{
		{
			ID:         "tw-hydraclaw",
			Type:       core.RecordTypeSocial,
			Source:     "Twitter",
			Platform:   "Twitter",
			Handle:     "hydra_claw",
			Confidence: core.ConfidenceHigh,
			LastSeen:   hoursAgo(2),
			ProfileURL: "https://twitter.com/hydra_claw",
			AvatarURL:  "https://images.unsplash.com/photo-1503023345310-bd7c1de61c7d?auto=format&fit=crop&w=200&q=60",
			Metadata: core.Metadata{
				"bio":       core.String("Threat intel analyst. Shadow networks researcher."),
				"followers": core.Int(12800),
				"following": core.Int(320),
				"languages": core.Strings("en", "es"),
				"tags":      core.Strings("osint", "threat-intel"),
			},
			Aliases:      []string{"umbra analyst"},
			Emails:       []string{"hydra@protonmail.com"},
			LocationHint: "Reykjavík",
		},
		{
			ID:         "gh-hydraclaw",
			Type:       core.RecordTypeSocial,
			Source:     "GitHub",
			Platform:   "GitHub",
			Handle:     "hydra-claw",
			Confidence: core.ConfidenceMedium,
			LastSeen:   hoursAgo(24 * 9),
			ProfileURL: "https://github.com/hydra-claw",
			Metadata: core.Metadata{
				"repos":     core.Int(42),
				"company":   core.String("Umbra Labs"),
				"location":  core.String("Reykjavík"),
				"languages": core.Strings("TypeScript", "Rust"),
			},
			Emails: []string{"hydra@umbra.dev"},
		},
		{
			ID:         "ig-cipher",
			Type:       core.RecordTypeSocial,
			Source:     "Instagram",
			Platform:   "Instagram",
			Handle:     "ciphertrace",
			Confidence: core.ConfidenceLow,
			LastSeen:   hoursAgo(72),
			ProfileURL: "https://instagram.com/ciphertrace",
			AvatarURL:  "https://images.unsplash.com/photo-1438761681033-6461ffad8d80?auto=format&fit=crop&w=200&q=60",
			Metadata: core.Metadata{
				"posts":     core.Int(120),
				"followers": core.Int(5600),
				"bio":       core.String("Urban exploration + crypto privacy"),
				"links":     core.Strings("https://ciphertrace.example/blog"),
			},
			Aliases:      []string{"ciph3r"},
			Phones:       []string{"+12065550111"},
			LocationHint: "Berlin",
		},
		{
			ID:         "email-breach",
			Type:       core.RecordTypeMetadata,
			Source:     "Leaked Dataset",
			Confidence: core.ConfidenceHigh,
			Metadata: core.Metadata{
				"email":        core.String("hydra@protonmail.com"),
				"breach":       core.String("Nightfall Archive 2023"),
				"passwordHash": core.String("sha1$8206...redacted"),
				"salt":         core.String("xv2"),
				"ip":           core.String("185.64.12.10"),
			},
			Aliases:      []string{"hydra_claw"},
			Emails:       []string{"hydra@protonmail.com"},
			LocationHint: "Iceland",
		},
		{
			ID:         "phone-signal",
			Type:       core.RecordTypeMetadata,
			Source:     "Carrier Lookup",
			Confidence: core.ConfidenceMedium,
			Metadata: core.Metadata{
				"phone":   core.String("+447911123456"),
				"carrier": core.String("Shadow Mobile"),
				"country": core.String("UK"),
				"active":  core.Bool(true),
			},
			Phones:       []string{"+447911123456"},
			LocationHint: "London",
		},
		{
			ID:         "darkweb-link",
			Type:       core.RecordTypeLink,
			Source:     "Darkweb Monitor",
			Confidence: core.ConfidenceLow,
			Metadata: core.Metadata{
				"url":     core.String("http://oniondomain.hidden/posts/umbra"),
				"context": core.String(`Forum post mentioning alias "umbra analyst"`),
				"risk":    core.String("medium"),
			},
			Aliases: []string{"umbra analyst"},
		},
		{
			ID:         "img-recon",
			Type:       core.RecordTypeImage,
			Source:     "Reverse Image",
			Confidence: core.ConfidenceHigh,
			Metadata: core.Metadata{
				"url":     core.String("https://images.unsplash.com/photo-1524504388940-b1c1722653e1?auto=format&fit=crop&w=600&q=60"),
				"matches": core.Strings("profile avatar on hydra_claw"),
				"exif": core.Map(map[string]core.Value{
					"device":   core.String("Pixel 8"),
					"location": core.String("Oslo"),
				}),
			},
			LocationHint: "Oslo",
		},
		{
			ID:         "unused-handle",
			Type:       core.RecordTypeSocial,
			Source:     "Reddit",
			Platform:   "Reddit",
			Handle:     "umbra-research",
			Confidence: core.ConfidenceMedium,
			LastSeen:   hoursAgo(4),
			ProfileURL: "https://reddit.com/u/umbra-research",
			Metadata: core.Metadata{
				"karma":         core.Int(2140),
				"subreddits":    core.Strings("r/netsec", "r/privacy"),
				"commentSample": core.String("Shadow markets discussion"),
			},
			Aliases:      []string{"umbra research"},
			LocationHint: "Dublin",
		},
		{
			ID:         "scant-result",
			Type:       core.RecordTypeMetadata,
			Source:     "Public Records",
			Confidence: core.ConfidenceLow,
			Metadata: core.Metadata{
				"note":    core.String("Sparse data for partial match only"),
				"quality": core.String("weak"),
			},
		},
	}
}

// Default builds a catalog from the built-in fixtures.
func Default(now time.Time) *Catalog {
	c, err := New(Fixtures(now))
	if err != nil {
		// fixtures are static and validated by tests
		panic(err)
	}
	return c
}
