// Package planner asks a text-completion provider whether the configured
// datasets can answer a question and, if so, for the SQL that does.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
	"github.com/leapstack-labs/dataexplorer/pkg/llm"
)

// Planner builds schema-grounded query plans.
type Planner struct {
	llm      llm.Completer
	dialects map[string]string
	logger   *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithDialects names the SQL dialect of each warehouse target so the prompt
// can ask for matching syntax.
func WithDialects(byTarget map[string]string) Option {
	return func(p *Planner) {
		p.dialects = byTarget
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Planner.
func New(completer llm.Completer, opts ...Option) *Planner {
	p := &Planner{llm: completer, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan asks whether any of the datasets can answer the question. A provider
// failure is returned as an error; an unparsable reply is a non-answerable
// plan.
func (p *Planner) Plan(ctx context.Context, question string, schemas []core.DatasetSchema) (core.QueryPlan, error) {
	reply, err := p.llm.Complete(ctx, p.Prompt(question, schemas))
	if err != nil {
		return core.QueryPlan{}, fmt.Errorf("plan query: %w", err)
	}
	plan := Parse(reply, schemas)
	p.logger.Debug("query plan",
		slog.Bool("answerable", plan.Answerable),
		slog.String("dataset", plan.Dataset.String()),
		slog.Bool("has_sql", plan.SQL != ""))
	return plan, nil
}

// Repair asks for a corrected statement after failedSQL was rejected by the
// warehouse with execErr.
func (p *Planner) Repair(ctx context.Context, question string, schemas []core.DatasetSchema, failedSQL string, execErr error) (core.QueryPlan, error) {
	var b strings.Builder
	b.WriteString(p.Prompt(question, schemas))
	fmt.Fprintf(&b, `
A previous attempt produced this query:

`+"```sql\n%s\n```"+`

The database rejected it with this error:
%s

Respond in the same format with a corrected query.
`, failedSQL, execErr)

	reply, err := p.llm.Complete(ctx, b.String())
	if err != nil {
		return core.QueryPlan{}, fmt.Errorf("repair query: %w", err)
	}
	return Parse(reply, schemas), nil
}

// Prompt renders the planning prompt.
func (p *Planner) Prompt(question string, schemas []core.DatasetSchema) string {
	var all strings.Builder
	all.WriteString("Database Schemas:\n\n")
	for _, ds := range schemas {
		fmt.Fprintf(&all, "=== %s ===\n", ds.Dataset)
		if d, ok := p.dialects[ds.Dataset.Target()]; ok {
			fmt.Fprintf(&all, "SQL dialect: %s\n", d)
		}
		all.WriteString(FormatSchema(ds))
		all.WriteString("\n")
	}

	return fmt.Sprintf(`You are a data analyst examining which database (if any) can best answer a specific question.

Question: %s

%s
Based on the available tables and columns across all databases, can any of these databases answer the question?

Respond with:
1. YES or NO
2. Explanation of your reasoning
3. If YES, which database and tables/columns would be needed
4. If NO, what data is missing
5. If able, build a single SQL query in the database's dialect that answers the question. Qualify tables with the schema name after the colon of the database name (for "local:vitals" write vitals.<table>).

Format your response as:

ANSWER: [YES/NO]

DATABASE: [Which database from the available ones]

REASONING: [Your explanation]

REQUIRED_DATA: [Tables and columns needed, or what's missing]

SQL QUERY:
`, question, all.String())
}

var printer = message.NewPrinter(language.English)

// FormatSchema renders one dataset's tables as prompt text.
func FormatSchema(ds core.DatasetSchema) string {
	var b strings.Builder
	b.WriteString("Available tables and columns:\n\n")
	for _, t := range ds.Tables.Tables() {
		fmt.Fprintf(&b, "Table: %s\n", t.Name)
		fmt.Fprintf(&b, "Description: %s\n", orNoDescription(t.Description))
		fmt.Fprintf(&b, "Rows: %s\n", printer.Sprintf("%d", t.RowCount))
		b.WriteString("Columns:\n")
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  - %s (%s): %s\n", c.Name, c.Type, orNoDescription(c.Description))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func orNoDescription(s string) string {
	if strings.TrimSpace(s) == "" {
		return "No description"
	}
	return s
}

var (
	sqlBlock     = regexp.MustCompile("(?is)```(?:sql)?\\s*(.*?)\\s*```")
	sqlHeader    = regexp.MustCompile(`(?i)SQL QUERY:\s*`)
	answerLabel  = regexp.MustCompile(`(?i)ANSWER:(.*)`)
	datasetLabel = regexp.MustCompile(`(?i)DATABASE:(.*)`)
)

// Parse reads a planner reply. The rationale is the reply with every fenced
// block and the "SQL QUERY:" header removed.
func Parse(reply string, schemas []core.DatasetSchema) core.QueryPlan {
	plan := core.QueryPlan{
		Answerable: strings.HasPrefix(strings.ToUpper(clean(labelValue(reply, answerLabel))), "YES"),
	}

	if plan.Answerable {
		if m := sqlBlock.FindStringSubmatch(reply); m != nil {
			plan.SQL = strings.TrimSpace(m[1])
		}
	}

	rationale := sqlBlock.ReplaceAllString(reply, "")
	rationale = sqlHeader.ReplaceAllString(rationale, "")
	plan.Rationale = strings.TrimSpace(rationale)

	plan.Dataset = resolveDataset(clean(labelValue(reply, datasetLabel)), schemas)
	return plan
}

// resolveDataset matches the DATABASE: value against the configured
// datasets, by full ID or by the part after the colon. Anything else falls
// back to the first dataset.
func resolveDataset(named string, schemas []core.DatasetSchema) core.DatasetID {
	if len(schemas) == 0 {
		return ""
	}
	if named != "" {
		for _, ds := range schemas {
			if strings.EqualFold(named, ds.Dataset.String()) {
				return ds.Dataset
			}
		}
		for _, ds := range schemas {
			if strings.EqualFold(named, ds.Dataset.Dataset()) {
				return ds.Dataset
			}
		}
		for _, ds := range schemas {
			if strings.Contains(strings.ToLower(named), strings.ToLower(ds.Dataset.String())) {
				return ds.Dataset
			}
		}
	}
	return schemas[0].Dataset
}

func labelValue(reply string, label *regexp.Regexp) string {
	if m := label.FindStringSubmatch(reply); m != nil {
		return m[1]
	}
	return ""
}

func clean(s string) string {
	return strings.Trim(strings.TrimSpace(s), " \t*[]\"'`")
}
