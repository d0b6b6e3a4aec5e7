package scraper

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pauljones0/live-deals/internal/config"
	"github.com/pauljones0/live-deals/internal/util"
)

// DefaultTargets are the restaurant homepages crawled when no list is configured.
var DefaultTargets = []string{
	"https://www.mcdonalds.com/us/en-us.html",
	"https://www.tacobell.com",
	"https://www.chipotle.com",
	"https://www.wendys.com",
	"https://www.bk.com",
	"https://www.chick-fil-a.com",
	"https://www.pandaexpress.com",
	"https://www.subway.com",
	"https://www.dominos.com",
	"https://www.papajohns.com",
	"https://www.littlecaesars.com",
	"https://www.pizzahut.com",
	"https://www.olivegarden.com",
	"https://www.buffalowildwings.com",
	"https://www.dunkindonuts.com",
	"https://www.starbucks.com",
	"https://www.sonicdrivein.com",
	"https://www.arbys.com",
	"https://www.jackinthebox.com",
	"https://www.whataburger.com",
	"https://www.wingstop.com",
	"https://www.raisingcanes.com",
	"https://www.zaxbys.com",
	"https://www.popeyes.com",
	"https://www.kfc.com",
	"https://www.panerabread.com",
	"https://www.jimmyjohns.com",
	"https://www.qdoba.com",
	"https://www.ihop.com",
	"https://www.dennys.com",
	"https://www.applebees.com",
	"https://www.chilis.com",
	"https://www.texasroadhouse.com",
	"https://www.dairyqueen.com",
	"https://www.krispykreme.com",
	"https://www.redlobster.com",
	"https://www.pfchangs.com",
}

type targetsFile struct {
	URLs []string `yaml:"urls"`
}

// LoadTargetsFile reads a YAML document with a top-level "urls" list.
func LoadTargetsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	var f targetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse targets file: %w", err)
	}
	if f.URLs == nil {
		f.URLs = []string{}
	}
	return f.URLs, nil
}

// ResolveTargets picks the crawl list: SCRAPER_URLS, then the targets file,
// then DefaultTargets. Blank and non-http(s) entries are dropped.
func ResolveTargets(cfg *config.Config) ([]*url.URL, error) {
	var raw []string
	switch {
	case cfg.ScraperURLs != nil:
		raw = cfg.ScraperURLs
	case cfg.ScraperTargetsFile != "":
		urls, err := LoadTargetsFile(cfg.ScraperTargetsFile)
		if err != nil {
			return nil, err
		}
		raw = urls
	default:
		raw = DefaultTargets
	}

	targets := make([]*url.URL, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		u, err := util.ParseHTTPURL(r)
		if err != nil {
			slog.Warn("Skipping invalid scraper target", "url", r, "error", err)
			continue
		}
		targets = append(targets, u)
	}
	return targets, nil
}
