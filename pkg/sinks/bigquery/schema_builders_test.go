package bigquery

import (
	"encoding/json"
	"io/ioutil"
	"strings"
	"time"

	bq "cloud.google.com/go/bigquery"

	"github.com/lawrencejones/pglake/pkg/changelog"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gstruct"
)

func mustSchemaFixture(path string) changelog.Schema {
	var schema changelog.Schema

	err := json.Unmarshal([]byte(mustFixture(path)), &schema)
	Expect(err).NotTo(HaveOccurred(), "failed to parse json fixture")

	return schema
}

func mustFixture(path string) string {
	bytes, err := ioutil.ReadFile(path)
	Expect(err).NotTo(HaveOccurred(), "failed to read fixture")

	return string(bytes)
}

var _ = Describe("buildTable", func() {
	var (
		md              *bq.TableMetadata
		err             error
		schema          changelog.Schema
		ingestionColumn string
	)

	BeforeEach(func() {
		schema = mustSchemaFixture("testdata/schema.example.json")
		ingestionColumn = "ingestion_timestamp"
	})

	JustBeforeEach(func() {
		md, err = buildTable("example", schema, ingestionColumn)
	})

	It("partitions by the ingestion column", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(md.TimePartitioning).To(gstruct.PointTo(gstruct.MatchFields(gstruct.IgnoreExtras, gstruct.Fields{
			"Field": Equal("ingestion_timestamp"),
		})))
	})

	It("builds fields sorted by name, requiring only the ingestion column", func() {
		Expect(err).NotTo(HaveOccurred())

		names := []string{}
		for _, field := range md.Schema {
			names = append(names, field.Name)
			Expect(field.Required).To(Equal(field.Name == "ingestion_timestamp"), field.Name)
		}

		Expect(names).To(Equal([]string{"id", "ingestion_timestamp", "msg", "tags", "updated_at"}))
	})

	It("maps arrays to repeated fields", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(md.Schema).To(ContainElement(gstruct.PointTo(gstruct.MatchFields(gstruct.IgnoreExtras, gstruct.Fields{
			"Name":     Equal("tags"),
			"Type":     Equal(bq.StringFieldType),
			"Repeated": BeTrue(),
		}))))
	})

	Context("when the ingestion column is missing", func() {
		BeforeEach(func() {
			ingestionColumn = "synced_at"
		})

		It("errors", func() {
			Expect(err).To(MatchError(ContainSubstring("missing ingestion column synced_at")))
		})
	})
})

var _ = Describe("schemaMatches", func() {
	var schema changelog.Schema

	BeforeEach(func() {
		schema = mustSchemaFixture("testdata/schema.example.json")
	})

	build := func(schema changelog.Schema) bq.Schema {
		fields, err := buildSchema(schema, "ingestion_timestamp")
		Expect(err).NotTo(HaveOccurred())
		return fields
	}

	It("matches identical schemas regardless of order", func() {
		fields := build(schema)
		reversed := bq.Schema{}
		for idx := len(fields) - 1; idx >= 0; idx-- {
			reversed = append(reversed, fields[idx])
		}

		Expect(schemaMatches(reversed, build(schema))).To(BeTrue())
	})

	It("detects added columns", func() {
		extended := schema.WithColumn(changelog.Column{Name: "extra", Kind: "string"})
		Expect(schemaMatches(build(schema), build(extended))).To(BeFalse())
	})

	It("detects changed types", func() {
		changed := schema
		changed.Columns = append([]changelog.Column{}, schema.Columns...)
		changed.Columns[0].Kind = "string"

		Expect(schemaMatches(build(schema), build(changed))).To(BeFalse())
	})
})

var _ = Describe("buildWatermarkQuery", func() {
	It("selects the maximum ingestion time", func() {
		query, err := buildWatermarkQuery("project:dataset.example", "ingestion_timestamp")
		Expect(err).NotTo(HaveOccurred())
		Expect(query).To(Equal(mustFixture("testdata/watermark.example.sql")))
	})
})

var _ = Describe("encodeRows", func() {
	It("writes one JSON object per line", func() {
		at := time.Date(2021, 3, 1, 9, 15, 0, 0, time.UTC)
		batch := changelog.Batch{
			Schema: mustSchemaFixture("testdata/schema.example.json"),
			Rows: []changelog.Row{
				{"id": int64(1), "msg": "meow", "tags": []string{"cat"}, "updated_at": at, "ingestion_timestamp": at},
				{"id": int64(2), "msg": nil, "tags": nil, "updated_at": at, "ingestion_timestamp": at},
			},
		}

		content, err := encodeRows(batch)
		Expect(err).NotTo(HaveOccurred())

		lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[0]).To(MatchJSON(`{
			"id": 1, "msg": "meow", "tags": ["cat"],
			"updated_at": "2021-03-01T09:15:00Z", "ingestion_timestamp": "2021-03-01T09:15:00Z"
		}`))
		Expect(lines[1]).To(ContainSubstring(`"msg":null`))
	})
})
