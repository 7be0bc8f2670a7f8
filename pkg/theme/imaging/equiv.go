package imaging

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/podtheme/themepack/pkg/theme"
)

// Candidate is one same-purpose asset contributed by a theme.
type Candidate struct {
	URL       string
	ThemeName string
	FileName  string
	ConfigKey string
}

// FindEquivalents collects, for every theme except the excluded one, the
// asset whose config key matches exactly. A theme contributes at most one
// candidate per key.
func FindEquivalents(configKey, excludeThemeID string, themes []theme.LoadedTheme) []Candidate {
	var out []Candidate
	for _, t := range themes {
		if t.ID == excludeThemeID {
			continue
		}
		for _, a := range t.LoadedAssets {
			if a.ConfigKey == configKey {
				out = append(out, Candidate{
					URL:       a.URL,
					ThemeName: t.DisplayTitle(),
					FileName:  a.FileName,
					ConfigKey: a.ConfigKey,
				})
				break
			}
		}
	}
	return out
}

// Groups maps signature → candidates, with bucket keys in first-seen order.
type Groups struct {
	ByHash map[string][]Candidate
	Order  []string
}

// Representatives picks the first-seen candidate of every bucket — the one
// choice presented for that visual content, collapsing identical assets
// contributed by multiple themes.
func (g Groups) Representatives() []Candidate {
	out := make([]Candidate, 0, len(g.Order))
	for _, key := range g.Order {
		out = append(out, g.ByHash[key][0])
	}
	return out
}

// Deduplicate hashes every candidate sequentially, in input order, and groups
// by signature. A candidate whose hash fails is bucketed under a synthetic
// theme+filename key so it survives as its own singleton group.
func Deduplicate(ctx context.Context, h Hasher, candidates []Candidate, logger hclog.Logger) Groups {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	g := Groups{ByHash: map[string][]Candidate{}}
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		key, err := h.Hash(ctx, c.URL)
		if err != nil {
			logger.Warn("hashing failed, keeping candidate as singleton",
				"theme", c.ThemeName, "file", c.FileName, "error", err)
			key = "err:" + c.ThemeName + "/" + c.FileName
		}
		if _, seen := g.ByHash[key]; !seen {
			g.Order = append(g.Order, key)
		}
		g.ByHash[key] = append(g.ByHash[key], c)
	}
	return g
}
