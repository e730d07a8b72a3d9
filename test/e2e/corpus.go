// Package e2e runs the import, search and projection pipeline end to end
// against a generated document corpus.
package e2e

import (
	"fmt"
	"strings"
)

// CorpusDocument is one document in the E2E corpus. Every document carries a
// unique marker token in its title so keyword queries can pin down a single
// document.
type CorpusDocument struct {
	Title string
	Text  string
}

// QueryCase is a query whose top similarity hit must come from one specific
// corpus document.
type QueryCase struct {
	Query       string
	DocIndex    int
	Description string
}

// Corpus holds the documents and the query cases derived from them.
type Corpus struct {
	Documents []CorpusDocument
	Cases     []QueryCase
}

var corpusTopics = []struct {
	marker string
	text   string
}{
	{"aurora", "Aurora displays appear when charged particles hit the upper atmosphere near the poles."},
	{"basalt", "Basalt is a dark volcanic rock that forms when lava cools quickly at the surface."},
	{"cumulus", "Cumulus clouds are puffy fair-weather clouds with flat bases and rounded tops."},
	{"delta", "A river delta forms where sediment settles out as the current slows at the sea."},
	{"estuary", "An estuary is a partially enclosed coastal body where fresh water meets salt water."},
	{"fjord", "A fjord is a deep glacially carved inlet flanked by steep cliffs."},
	{"geyser", "A geyser erupts when groundwater heated by magma flashes to steam underground."},
	{"halite", "Halite is rock salt, crystallizing in cubes as saline water evaporates."},
	{"isthmus", "An isthmus is a narrow strip of land joining two larger landmasses."},
	{"jetstream", "The jet stream is a fast ribbon of wind in the upper troposphere that steers storms."},
	{"karst", "Karst terrain develops where soluble bedrock dissolves into sinkholes and caves."},
	{"lagoon", "A lagoon is shallow water separated from the open sea by a reef or barrier island."},
	{"monsoon", "The monsoon is a seasonal wind reversal that brings heavy summer rainfall."},
	{"nimbus", "Nimbus clouds are rain bearing layers that blot out the sun for hours."},
	{"oasis", "An oasis forms where an aquifer reaches the surface in an otherwise arid desert."},
	{"permafrost", "Permafrost is ground that stays frozen for at least two consecutive years."},
	{"quartz", "Quartz is a hard silicate mineral found in granite and most sand."},
	{"riptide", "A rip current is a narrow fast channel of water flowing seaward through the surf."},
	{"savanna", "A savanna is a grassland with scattered trees found between forest and desert."},
	{"tundra", "Tundra is a cold treeless biome where only mosses and low shrubs survive."},
	{"updraft", "An updraft is rising air inside a storm cell that can loft hail for minutes."},
	{"volcano", "A volcano vents molten rock, ash and gas from a magma chamber below."},
	{"watershed", "A watershed is the area of land that drains into a single river system."},
	{"xerophyte", "A xerophyte is a plant adapted to survive with very little water."},
	{"yardang", "A yardang is a wind carved ridge of bedrock found in hyperarid deserts."},
	{"zephyr", "A zephyr is a gentle breeze, traditionally one blowing from the west."},
	{"albedo", "Albedo measures how much sunlight a surface reflects back into space."},
	{"brackish", "Brackish water has more salt than fresh water but less than seawater."},
	{"caldera", "A caldera is a broad crater left when a volcano collapses into its emptied chamber."},
	{"drumlin", "A drumlin is an elongated hill of glacial till shaped by moving ice."},
	{"erratic", "A glacial erratic is a boulder carried far from its source by ice sheets."},
	{"foehn", "A foehn wind is a warm dry downslope wind on the lee side of a mountain range."},
	{"graben", "A graben is a block of crust dropped down between two parallel faults."},
	{"hoodoo", "A hoodoo is a tall thin spire of soft rock capped by harder stone."},
	{"inselberg", "An inselberg is an isolated rock hill rising abruptly from a level plain."},
	{"joule", "A joule of solar energy absorbed at the surface mostly returns as infrared radiation."},
	{"katabatic", "A katabatic wind drains cold dense air downslope off an ice sheet at night."},
	{"loess", "Loess is wind blown silt that builds thick fertile deposits over millennia."},
	{"moraine", "A moraine is a ridge of debris bulldozed into place at a glacier's edge."},
	{"nunatak", "A nunatak is a mountain peak protruding through the surface of an ice field."},
}

// BuildCorpus returns the full document corpus and one query case per
// document. Each query is the normalized text of its document, so with a
// deterministic embedder the document must come back as the top hit.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	for i, topic := range corpusTopics {
		doc := CorpusDocument{
			Title: fmt.Sprintf("%s-notes-%02d", topic.marker, i+1),
			Text:  topic.text,
		}
		c.Documents = append(c.Documents, doc)
		c.Cases = append(c.Cases, QueryCase{
			Query:       NormalizeText(doc.Text),
			DocIndex:    i,
			Description: fmt.Sprintf("query for %s returns its document", topic.marker),
		})
	}
	return c
}

// Marker returns the unique keyword token of document i.
func (c *Corpus) Marker(i int) string {
	return corpusTopics[i].marker
}

// NormalizeText collapses whitespace the same way the import chunker does, so
// a query built from a document's text matches its stored chunk exactly.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
