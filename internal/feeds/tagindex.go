package feeds

import (
	"fmt"
	"time"

	"github.com/rzbill/feedgen/internal/feedstore"
	"github.com/rzbill/feedgen/internal/firehose"
)

// TeamTags maps MLB team abbreviations used in feed URIs to the hashtags
// the home-run bot puts on its posts.
var TeamTags = map[string]string{
	"ARI": "ArizonaDiamondbacks",
	"ATL": "AtlantaBraves",
	"BAL": "BaltimoreOrioles",
	"BOS": "BostonRedSox",
	"CHA": "ChicagoWhiteSox",
	"CHN": "ChicagoCubs",
	"CIN": "CincinnatiReds",
	"CLE": "ClevelandGuardians",
	"COL": "ColoradoRockies",
	"DET": "DetroitTigers",
	"HOU": "HoustonAstros",
	"KCA": "KansasCityRoyals",
	"LAA": "LosAngelesAngels",
	"LAN": "LosAngelesDodgers",
	"MIA": "MiamiMarlins",
	"MIL": "MilwaukeeBrewers",
	"MIN": "MinnesotaTwins",
	"NYA": "NewYorkYankees",
	"NYN": "NewYorkMets",
	"OAK": "OaklandAthletics",
	"PHI": "PhiladelphiaPhillies",
	"PIT": "PittsburghPirates",
	"SDN": "SanDiegoPadres",
	"SEA": "SeattleMariners",
	"SFN": "SanFranciscoGiants",
	"SLN": "StLouisCardinals",
	"TBA": "TampaBayRays",
	"TEX": "TexasRangers",
	"TOR": "TorontoBlueJays",
	"WAS": "WashingtonNationals",
}

type tagIndexStrategy struct {
	lookup map[string]string
	drift  time.Duration
}

// NewTagIndex returns a strategy indexing posts by hashtag. The route
// parameter is translated through lookup into the tag to serve.
func NewTagIndex(lookup map[string]string, drift time.Duration) Strategy {
	cp := make(map[string]string, len(lookup))
	for k, v := range lookup {
		cp[k] = v
	}
	return &tagIndexStrategy{lookup: cp, drift: drift}
}

func (s *tagIndexStrategy) Kind() string { return "tagindex" }

func (s *tagIndexStrategy) Ingest(sink Sink, c firehose.Commit, op firehose.RepoOp, now time.Time) error {
	rec := op.Record
	if op.Collection != firehose.CollectionPost || rec == nil || len(rec.Tags) == 0 {
		return nil
	}
	at := SafeTimestamp(rec.CreatedAt, now, s.drift)
	m := feedstore.Increment(c.URI(op), at)
	m.Langs = rec.Langs
	m.Tags = rec.Tags
	return sink.Write(m)
}

// Tag resolves a route parameter.
func (s *tagIndexStrategy) Tag(param string) (string, error) {
	tag, ok := s.lookup[param]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrBadParam, param)
	}
	return tag, nil
}

func (s *tagIndexStrategy) Rank(r feedstore.Reader, req ServeRequest, n int, _ time.Time) ([]Scored, error) {
	tag, err := s.Tag(req.Param)
	if err != nil {
		return nil, err
	}
	return newest(func(fn func(feedstore.Item) bool) error { return r.ScanTag(tag, fn) }, req.Langs, n, nil)
}

func (s *tagIndexStrategy) Evict(*feedstore.Tx, time.Time) (int, error) { return 0, nil }
