package reference

import (
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/lab-report-analyzer/internal/domain"
)

// resolverCacheSize bounds the label cache. Lab reports reuse a small
// vocabulary, so even a modest cache absorbs nearly all repeat lookups.
const resolverCacheSize = 512

// Resolver maps the messy test labels found on printed reports
// ("Haemoglobin (Hb)", "S.G.P.T", "TOTAL LEUCOCYTE COUNT") to canonical
// catalog codes. Matching is case-insensitive and prefers the longest
// alias so "glucose fasting" never stops at "glucose".
type Resolver struct {
	catalog *Catalog
	aliases []aliasEntry
	exact   map[string]string
	cache   *lru.Cache[string, resolved]
	log     *logrus.Logger
}

type aliasEntry struct {
	alias string
	code  string
}

type resolved struct {
	code  string
	known bool
}

var (
	labelNoiseRe  = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	labelPunctRe  = regexp.MustCompile(`[^a-z0-9]+`)
	slugInvalidRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// NewResolver builds the resolver over the given catalog. The cache
// constructor only fails on a non-positive size, which is fixed here.
func NewResolver(catalog *Catalog, log *logrus.Logger) *Resolver {
	cache, _ := lru.New[string, resolved](resolverCacheSize)

	r := &Resolver{
		catalog: catalog,
		exact:   make(map[string]string, len(testAliases)),
		cache:   cache,
		log:     log,
	}
	for alias, code := range testAliases {
		r.exact[alias] = code
		r.aliases = append(r.aliases, aliasEntry{alias: alias, code: code})
	}
	// Longest alias first, then lexicographic for determinism.
	sort.Slice(r.aliases, func(i, j int) bool {
		if len(r.aliases[i].alias) != len(r.aliases[j].alias) {
			return len(r.aliases[i].alias) > len(r.aliases[j].alias)
		}
		return r.aliases[i].alias < r.aliases[j].alias
	})
	return r
}

// Resolve maps a raw test label to its canonical code. The second return
// reports whether the code exists in the catalog; unknown labels still
// get a stable slug code so they survive the pipeline and merging.
func (r *Resolver) Resolve(rawName string) (string, bool) {
	key := normalizeLabel(rawName)
	if key == "" {
		return "", false
	}
	if hit, ok := r.cache.Get(key); ok {
		return hit.code, hit.known
	}

	code, known := r.resolve(key)
	r.cache.Add(key, resolved{code: code, known: known})
	if !known && r.log != nil {
		r.log.WithFields(logrus.Fields{
			"label": rawName,
			"code":  code,
		}).Debug("Test label not in catalog, using slug code")
	}
	return code, known
}

func (r *Resolver) resolve(key string) (string, bool) {
	if code, ok := r.exact[key]; ok {
		return code, true
	}
	// Dotted abbreviations ("T.L.C.", "S.G.P.T") normalize to spaced
	// letters, so also try the compacted form.
	if code, ok := r.exact[strings.ReplaceAll(key, " ", "")]; ok {
		return code, true
	}
	// Substring pass, longest alias first. Short aliases only match as
	// whole words so "t3" does not fire inside "sgot3".
	for _, e := range r.aliases {
		if len(e.alias) >= 4 {
			if strings.Contains(key, e.alias) {
				return e.code, true
			}
			continue
		}
		if containsWord(key, e.alias) {
			return e.code, true
		}
	}
	if _, ok := r.catalog.Lookup(key); ok {
		return key, true
	}
	slug := slugify(key)
	_, known := r.catalog.Lookup(slug)
	return slug, known
}

// Section returns the report section for a code, falling back to keyword
// inspection of the label when the code is not in the catalog.
func (r *Resolver) Section(code, rawName string) domain.Section {
	if rng, ok := r.catalog.Lookup(code); ok {
		return rng.Section
	}
	name := strings.ToLower(rawName)
	switch {
	case strings.Contains(name, "urine"):
		return domain.SectionUrineAnalysis
	case strings.Contains(name, "serum"), strings.Contains(name, "plasma"):
		return domain.SectionBiochemistry
	default:
		return domain.SectionOther
	}
}

// normalizeLabel lowercases, strips parenthesized asides and stray
// punctuation, and collapses whitespace.
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = labelNoiseRe.ReplaceAllString(s, " ")
	s = labelPunctRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

func slugify(s string) string {
	s = slugInvalidRe.ReplaceAllString(strings.ToLower(s), "_")
	return strings.Trim(s, "_")
}

func containsWord(s, word string) bool {
	for _, w := range strings.Fields(s) {
		if w == word {
			return true
		}
	}
	return false
}

// testAliases maps normalized report labels to canonical catalog codes.
// Keys must already be in normalizeLabel form.
var testAliases = map[string]string{
	// Hemoglobin and red cell indices
	"hemoglobin":  "hemoglobin",
	"haemoglobin": "hemoglobin",
	"hb":          "hemoglobin",
	"hgb":         "hemoglobin",

	"hematocrit":         "hematocrit",
	"haematocrit":        "hematocrit",
	"hct":                "hematocrit",
	"pcv":                "hematocrit",
	"packed cell volume": "hematocrit",

	"rbc count":             "rbc_count",
	"rbc":                   "rbc_count",
	"red blood cell count":  "rbc_count",
	"red blood cells":       "rbc_count",
	"total rbc count":       "rbc_count",
	"erythrocyte count":     "rbc_count",

	"wbc count":              "wbc_count",
	"wbc":                    "wbc_count",
	"white blood cell count": "wbc_count",
	"white blood cells":      "wbc_count",
	"total wbc count":        "wbc_count",
	"total leucocyte count":  "wbc_count",
	"total leukocyte count":  "wbc_count",
	"tlc":                    "wbc_count",
	"leucocyte count":        "wbc_count",

	"platelet count":  "platelet_count",
	"platelets":       "platelet_count",
	"platelet":        "platelet_count",
	"plt":             "platelet_count",
	"thrombocyte":     "platelet_count",

	"mcv":  "mcv",
	"mean corpuscular volume": "mcv",
	"mch":  "mch",
	"mean corpuscular hemoglobin": "mch",
	"mchc": "mchc",
	"mean corpuscular hemoglobin concentration": "mchc",
	"rdw":    "rdw",
	"rdw cv": "rdw",

	// Differential
	"neutrophils": "neutrophils",
	"neutrophil":  "neutrophils",
	"polymorphs":  "neutrophils",
	"lymphocytes": "lymphocytes",
	"lymphocyte":  "lymphocytes",
	"monocytes":   "monocytes",
	"monocyte":    "monocytes",
	"eosinophils": "eosinophils",
	"eosinophil":  "eosinophils",
	"basophils":   "basophils",
	"basophil":    "basophils",

	"esr": "esr",
	"erythrocyte sedimentation rate": "esr",

	// Glucose
	"glucose fasting":       "glucose_fasting",
	"fasting glucose":       "glucose_fasting",
	"fasting blood sugar":   "glucose_fasting",
	"fbs":                   "glucose_fasting",
	"blood sugar fasting":   "glucose_fasting",
	"glucose f":             "glucose_fasting",
	"glucose random":        "glucose_random",
	"random glucose":        "glucose_random",
	"random blood sugar":    "glucose_random",
	"rbs":                   "glucose_random",
	"blood sugar random":    "glucose_random",
	"glucose":               "glucose_random",
	"blood glucose":         "glucose_random",
	"blood sugar":           "glucose_random",
	"glucose pp":            "glucose_pp",
	"post prandial glucose": "glucose_pp",
	"postprandial glucose":  "glucose_pp",
	"pp blood sugar":        "glucose_pp",
	"ppbs":                  "glucose_pp",
	"glucose post prandial": "glucose_pp",

	"hba1c":                 "hba1c",
	"glycated hemoglobin":   "hba1c",
	"glycosylated hemoglobin": "hba1c",

	// Kidney
	"creatinine":       "creatinine",
	"serum creatinine": "creatinine",
	"s creatinine":     "creatinine",
	"bun":              "bun",
	"blood urea nitrogen": "bun",
	"urea":             "urea",
	"serum urea":       "urea",
	"blood urea":       "blood_urea",
	"uric acid":        "uric_acid",
	"serum uric acid":  "uric_acid",
	"egfr":             "egfr",
	"gfr":              "egfr",

	// Liver
	"sgpt":     "sgpt_alt",
	"alt":      "sgpt_alt",
	"s g p t":  "sgpt_alt",
	"alanine aminotransferase": "sgpt_alt",
	"sgot":     "sgot_ast",
	"ast":      "sgot_ast",
	"s g o t":  "sgot_ast",
	"aspartate aminotransferase": "sgot_ast",
	"alp": "alp",
	"alkaline phosphatase": "alp",
	"ggt":  "ggt",
	"ggtp": "ggt",
	"gamma gt": "ggt",
	"gamma glutamyl transferase": "ggt",

	"bilirubin total":    "bilirubin_total",
	"total bilirubin":    "bilirubin_total",
	"bilirubin":          "bilirubin_total",
	"serum bilirubin":    "bilirubin_total",
	"bilirubin direct":   "bilirubin_direct",
	"direct bilirubin":   "bilirubin_direct",
	"conjugated bilirubin": "bilirubin_direct",

	"albumin":       "albumin",
	"serum albumin": "albumin",
	"globulin":      "globulin",
	"serum globulin": "globulin",
	"a g ratio":     "ag_ratio",
	"ag ratio":      "ag_ratio",
	"albumin globulin ratio": "ag_ratio",
	"total protein":   "total_protein",
	"serum protein":   "total_protein",
	"protein total":   "total_protein",
	"total proteins":  "total_protein",

	// Lipids
	"total cholesterol": "cholesterol_total",
	"cholesterol total": "cholesterol_total",
	"cholesterol":       "cholesterol_total",
	"serum cholesterol": "cholesterol_total",
	"hdl":               "hdl",
	"hdl cholesterol":   "hdl",
	"ldl":               "ldl",
	"ldl cholesterol":   "ldl",
	"triglycerides":     "triglycerides",
	"triglyceride":      "triglycerides",
	"tg":                "triglycerides",
	"vldl":              "vldl",
	"vldl cholesterol":  "vldl",

	// Thyroid
	"tsh": "tsh",
	"thyroid stimulating hormone": "tsh",
	"t3":            "t3",
	"total t3":      "t3",
	"triiodothyronine": "t3",
	"t4":            "t4",
	"total t4":      "t4",
	"thyroxine":     "t4",
	"free t3":       "free_t3",
	"ft3":           "free_t3",
	"free t4":       "free_t4",
	"ft4":           "free_t4",

	// Electrolytes and minerals
	"sodium":          "sodium",
	"serum sodium":    "sodium",
	"na":              "sodium",
	"potassium":       "potassium",
	"serum potassium": "potassium",
	"k":               "potassium",
	"chloride":        "chloride",
	"serum chloride":  "chloride",
	"cl":              "chloride",
	"calcium":         "calcium",
	"serum calcium":   "calcium",
	"ca":              "calcium",
	"magnesium":       "magnesium",
	"mg":              "magnesium",
	"phosphorus":      "phosphorus",
	"phosphorous":     "phosphorus",

	// Cardiac and inflammation
	"troponin":   "troponin",
	"troponin i": "troponin",
	"troponin t": "troponin",
	"ck mb":      "ck_mb",
	"ckmb":       "ck_mb",
	"bnp":        "bnp",
	"crp":        "crp",
	"c reactive protein": "crp",
	"hs crp":     "crp",

	// Coagulation
	"pt":   "pt",
	"prothrombin time": "pt",
	"inr":  "inr",
	"aptt": "aptt",
	"ptt":  "aptt",
	"activated partial thromboplastin time": "aptt",

	// Vitamins and iron studies
	"vitamin d":    "vitamin_d",
	"vit d":        "vitamin_d",
	"25 oh vitamin d": "vitamin_d",
	"vitamin b12":  "vitamin_b12",
	"vit b12":      "vitamin_b12",
	"b12":          "vitamin_b12",
	"cyanocobalamin": "vitamin_b12",
	"folate":       "folate",
	"folic acid":   "folate",
	"iron":         "iron",
	"serum iron":   "iron",
	"ferritin":     "ferritin",
	"serum ferritin": "ferritin",
	"tibc":         "tibc",
	"total iron binding capacity": "tibc",

	// Urine analysis
	"specific gravity": "specific_gravity",
	"sp gravity":       "specific_gravity",
	"urine ph":         "urine_ph",
	"reaction ph":      "urine_ph",
	"pus cells":        "pus_cells",
	"urine wbc":        "pus_cells",
	"wbc urine":        "pus_cells",
	"leucocytes urine": "pus_cells",
	"urine rbc":        "urine_rbc",
	"rbc urine":        "urine_rbc",
	"red cells urine":  "urine_rbc",
	"epithelial cells": "epithelial_cells",
	"urine protein":    "urine_protein",
	"protein urine":    "urine_protein",
	"urine albumin":    "urine_protein",
	"urine glucose":    "urine_glucose",
	"glucose urine":    "urine_glucose",
	"urine sugar":      "urine_glucose",
	"leucocyte esterase": "leucocyte_esterase",
	"leukocyte esterase": "leucocyte_esterase",
}
