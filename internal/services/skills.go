package services

import (
	"regexp"
	"strings"
	"unicode"
)

// skillAliases maps normalised spellings onto one canonical key.
var skillAliases = map[string]string{
	"golang":                "go",
	"k8s":                   "kubernetes",
	"kube":                  "kubernetes",
	"js":                    "javascript",
	"ecmascript":            "javascript",
	"ts":                    "typescript",
	"postgres":              "postgresql",
	"psql":                  "postgresql",
	"pg":                    "postgresql",
	"mongo":                 "mongodb",
	"node":                  "nodejs",
	"reactjs":               "react",
	"vuejs":                 "vue",
	"angularjs":             "angular",
	"nextjs":                "next",
	"py":                    "python",
	"python3":               "python",
	"amazon web services":   "aws",
	"google cloud":          "gcp",
	"google cloud platform": "gcp",
	"microsoft azure":       "azure",
	"ml":                    "machine learning",
	"ai":                    "artificial intelligence",
	"cicd":                  "ci cd",
	"ci":                    "ci cd",
	"rest api":              "rest",
	"restful":               "rest",
	"restful api":           "rest",
	"elastic":               "elasticsearch",
	"tf":                    "terraform",
	"c sharp":               "c#",
	"cpp":                   "c++",
	"gitlab ci":             "ci cd",
	"github actions":        "ci cd",
}

// NormalizeSkill folds case, punctuation and known aliases so "Golang", "go" and
// "GO " compare equal. "+" and "#" survive for C++ and C#.
func NormalizeSkill(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case r == '.':
			// node.js -> nodejs
		default:
			space = true
		}
	}
	key := b.String()
	if alias, ok := skillAliases[key]; ok {
		return alias
	}
	return key
}

type skillKeyword struct {
	name     string
	patterns []*regexp.Regexp
}

// knownSkills drives the keyword fallback parser. Short ambiguous names are
// matched case-sensitively.
var knownSkills = buildKeywords([]struct {
	name  string
	fold  []string
	exact []string
}{
	{"Go", []string{"golang"}, []string{"Go"}},
	{"Python", []string{"python"}, nil},
	{"Java", []string{"java"}, nil},
	{"JavaScript", []string{"javascript"}, []string{"JS"}},
	{"TypeScript", []string{"typescript"}, nil},
	{"C++", []string{"c++"}, nil},
	{"C#", []string{"c#"}, nil},
	{"Ruby", []string{"ruby"}, nil},
	{"PHP", []string{"php"}, nil},
	{"Rust", []string{"rust"}, nil},
	{"Kotlin", []string{"kotlin"}, nil},
	{"Swift", []string{"swift"}, nil},
	{"Scala", []string{"scala"}, nil},
	{"SQL", []string{"sql"}, nil},
	{"PostgreSQL", []string{"postgresql", "postgres"}, nil},
	{"MySQL", []string{"mysql"}, nil},
	{"MongoDB", []string{"mongodb"}, nil},
	{"Redis", []string{"redis"}, nil},
	{"Elasticsearch", []string{"elasticsearch"}, nil},
	{"Kafka", []string{"kafka"}, nil},
	{"RabbitMQ", []string{"rabbitmq"}, nil},
	{"Docker", []string{"docker"}, nil},
	{"Kubernetes", []string{"kubernetes", "k8s"}, nil},
	{"Terraform", []string{"terraform"}, nil},
	{"AWS", []string{"aws", "amazon web services"}, nil},
	{"GCP", []string{"gcp", "google cloud"}, nil},
	{"Azure", []string{"azure"}, nil},
	{"Linux", []string{"linux"}, nil},
	{"Git", []string{"git"}, nil},
	{"React", []string{"react", "reactjs", "react.js"}, nil},
	{"Angular", []string{"angular"}, nil},
	{"Vue", []string{"vue", "vue.js", "vuejs"}, nil},
	{"Node.js", []string{"node.js", "nodejs"}, nil},
	{"Django", []string{"django"}, nil},
	{"Flask", []string{"flask"}, nil},
	{"Spring", []string{"spring boot", "spring"}, nil},
	{"GraphQL", []string{"graphql"}, nil},
	{"REST", []string{"restful", "rest api"}, []string{"REST"}},
	{"gRPC", []string{"grpc"}, nil},
	{"HTML", []string{"html"}, nil},
	{"CSS", []string{"css"}, nil},
	{"Machine Learning", []string{"machine learning"}, nil},
	{"TensorFlow", []string{"tensorflow"}, nil},
	{"PyTorch", []string{"pytorch"}, nil},
	{"Pandas", []string{"pandas"}, nil},
	{"Microservices", []string{"microservices"}, nil},
	{"CI/CD", []string{"ci/cd"}, nil},
	{"Jenkins", []string{"jenkins"}, nil},
	{"Agile", []string{"agile"}, nil},
	{"Scrum", []string{"scrum"}, nil},
	{"Excel", []string{"excel"}, nil},
})

func buildKeywords(defs []struct {
	name  string
	fold  []string
	exact []string
}) []skillKeyword {
	const left, right = `(?:^|[^\pL\pN+#])`, `(?:$|[^\pL\pN+#])`
	out := make([]skillKeyword, 0, len(defs))
	for _, d := range defs {
		kw := skillKeyword{name: d.name}
		for _, v := range d.fold {
			kw.patterns = append(kw.patterns, regexp.MustCompile(`(?i)`+left+regexp.QuoteMeta(v)+right))
		}
		for _, v := range d.exact {
			kw.patterns = append(kw.patterns, regexp.MustCompile(left+regexp.QuoteMeta(v)+right))
		}
		out = append(out, kw)
	}
	return out
}

// FindKnownSkills returns the known skills mentioned in text, in list order.
func FindKnownSkills(text string) []string {
	var found []string
	for _, kw := range knownSkills {
		for _, re := range kw.patterns {
			if re.MatchString(text) {
				found = append(found, kw.name)
				break
			}
		}
	}
	return found
}
