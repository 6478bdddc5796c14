package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/axonworks/axon/pkg/atoms/common"
	"github.com/axonworks/axon/pkg/atoms/dedup"
	"github.com/axonworks/axon/pkg/scheduler"
)

const (
	maxClusters        = 20
	maxDiffsPerCluster = 5
)

type memberDiff struct {
	Identity string
	Diffs    []diffmatchpatch.Diff
}

type clusterView struct {
	Identity string
	Size     int
	Diffs    []memberDiff
}

// clusterViews extracts dedup.clusters payloads from the emission log and
// diffs each duplicate against its cluster representative. Singleton
// clusters carry nothing worth inspecting and are skipped.
func clusterViews(rep *scheduler.RunReport) []clusterView {
	dmp := diffmatchpatch.New()

	var out []clusterView

	for _, sig := range rep.Signals {
		if sig.Name != common.DedupClusters {
			continue
		}

		for _, cluster := range decodeClusters(sig.Value) {
			if len(cluster.Duplicates) == 0 {
				continue
			}

			view := clusterView{
				Identity: cluster.Representative.Identity(),
				Size:     len(cluster.Duplicates),
			}

			base := diffContent(cluster.Representative)

			members := cluster.Duplicates
			if len(members) > maxDiffsPerCluster {
				members = members[:maxDiffsPerCluster]
			}

			for _, dup := range members {
				diffs := dmp.DiffMain(base, diffContent(dup), false)
				diffs = dmp.DiffCleanupSemantic(diffs)

				view.Diffs = append(view.Diffs, memberDiff{
					Identity: dup.Identity(),
					Diffs:    diffs,
				})
			}

			out = append(out, view)
			if len(out) == maxClusters {
				return out
			}
		}
	}

	return out
}

// diffContent mirrors the dedup atom's comparison content: text when
// present, key otherwise.
func diffContent(s common.Scored) string {
	if s.Text != "" {
		return s.Text
	}

	return s.Key
}

// decodeClusters accepts the native payload and its JSON map form.
func decodeClusters(v any) []dedup.Cluster {
	switch p := v.(type) {
	case []dedup.Cluster:
		return p
	case []any:
		out := make([]dedup.Cluster, 0, len(p))

		for _, item := range p {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}

			rep := common.DecodeScored(m["representative"])
			if len(rep) != 1 {
				continue
			}

			cluster := dedup.Cluster{Representative: rep[0]}

			if dups, ok := m["duplicates"].([]any); ok {
				for _, d := range dups {
					if ds := common.DecodeScored(d); len(ds) == 1 {
						cluster.Duplicates = append(cluster.Duplicates, ds[0])
					}
				}
			}

			out = append(out, cluster)
		}

		if len(out) == 0 {
			return nil
		}

		return out
	default:
		return nil
	}
}

// clustersHTML renders the duplicate inspector as an HTML fragment, empty
// when no clusters with duplicates exist.
func clustersHTML(rep *scheduler.RunReport) string {
	views := clusterViews(rep)
	if len(views) == 0 {
		return ""
	}

	dmp := diffmatchpatch.New()

	var sb strings.Builder

	sb.WriteString(`<div style="margin:20px auto;max-width:1200px;font-family:monospace">`)
	sb.WriteString("<h2>Duplicate clusters</h2>")

	for _, view := range views {
		fmt.Fprintf(&sb, "<h3>%s (+%d duplicates)</h3>", html.EscapeString(view.Identity), view.Size)

		for _, member := range view.Diffs {
			fmt.Fprintf(&sb, `<p>vs %s</p><pre>%s</pre>`,
				html.EscapeString(member.Identity),
				dmp.DiffPrettyHtml(member.Diffs))
		}
	}

	sb.WriteString("</div>")

	return sb.String()
}
