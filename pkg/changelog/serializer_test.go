package changelog_test

import (
	"math"
	"time"

	"github.com/jackc/pgtype"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/decode"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("JSONSerializer", func() {
	var (
		serializer = changelog.JSONSerializer{}
		schema     = changelog.Schema{
			Namespace: "public",
			Name:      "kitchen_sink",
			Columns: []changelog.Column{
				{Name: "id", Type: pgtype.Int8OID, Kind: decode.KindInteger},
				{Name: "score", Type: pgtype.Float8OID, Kind: decode.KindFloat},
				{Name: "active", Type: pgtype.BoolOID, Kind: decode.KindBoolean},
				{Name: "born_on", Type: pgtype.DateOID, Kind: decode.KindDate},
				{Name: "updated_at", Type: pgtype.TimestamptzOID, Kind: decode.KindTimestamp},
				{Name: "tags", Type: pgtype.TextArrayOID, Kind: decode.KindStringArray},
				{Name: "counts", Type: pgtype.Int8ArrayOID, Kind: decode.KindIntegerArray},
				{Name: "payload", Type: pgtype.ByteaOID, Kind: decode.KindBytes},
				{Name: "missing", Type: pgtype.TextOID, Kind: decode.KindString},
			},
		}
		updatedAt = time.Date(2020, 5, 4, 3, 2, 1, 500, time.UTC)
		bornOn    = time.Date(1990, 2, 3, 0, 0, 0, 0, time.UTC)
		row       = changelog.Row{
			"id":         int64(7),
			"score":      float64(1.5),
			"active":     true,
			"born_on":    bornOn,
			"updated_at": updatedAt,
			"tags":       []string{"a", "b"},
			"counts":     []int64{1, 2},
			"payload":    []byte("hello"),
			"missing":    nil,
		}
	)

	It("writes dates without a time component", func() {
		data, err := serializer.Marshal(schema, row)

		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"born_on":"1990-02-03"`))
		Expect(string(data)).To(ContainSubstring(`"updated_at":"2020-05-04T03:02:01.0000005Z"`))
	})

	It("restores values to their decoded Golang types", func() {
		data, err := serializer.Marshal(schema, row)
		Expect(err).NotTo(HaveOccurred())

		restored, err := serializer.Unmarshal(schema, data)
		Expect(err).NotTo(HaveOccurred())

		Expect(restored).To(Equal(row))
	})

	Context("with non-finite floats", func() {
		var floats = changelog.Schema{
			Namespace: "public",
			Name:      "readings",
			Columns: []changelog.Column{
				{Name: "nan", Type: pgtype.Float8OID, Kind: decode.KindFloat},
				{Name: "pos", Type: pgtype.Float4OID, Kind: decode.KindFloat},
				{Name: "neg", Type: pgtype.NumericOID, Kind: decode.KindFloat},
			},
		}

		It("writes them as strings and restores them", func() {
			data, err := serializer.Marshal(floats, changelog.Row{
				"nan": math.NaN(),
				"pos": float32(math.Inf(1)),
				"neg": math.Inf(-1),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(MatchJSON(`{"nan":"NaN","pos":"Infinity","neg":"-Infinity"}`))

			restored, err := serializer.Unmarshal(floats, data)
			Expect(err).NotTo(HaveOccurred())
			Expect(math.IsNaN(restored["nan"].(float64))).To(BeTrue())
			Expect(restored["pos"]).To(Equal(math.Inf(1)))
			Expect(restored["neg"]).To(Equal(math.Inf(-1)))
		})

		It("rejects other strings", func() {
			_, err := serializer.Unmarshal(floats, []byte(`{"nan":"nope"}`))
			Expect(err).To(MatchError(ContainSubstring("column nan")))
		})
	})

	It("round trips the bounds that stand in for infinite timestamps", func() {
		data, err := serializer.Marshal(schema, changelog.Row{"updated_at": decode.MaxTime, "born_on": decode.MinTime})
		Expect(err).NotTo(HaveOccurred())

		restored, err := serializer.Unmarshal(schema, data)
		Expect(err).NotTo(HaveOccurred())
		Expect(restored["updated_at"]).To(BeTemporally("==", decode.MaxTime))
		Expect(restored["born_on"]).To(BeTemporally("==", decode.MinTime))
	})

	It("rejects non-time values in timestamp columns", func() {
		_, err := serializer.Marshal(schema, changelog.Row{"updated_at": "yesterday"})
		Expect(err).To(MatchError(ContainSubstring("updated_at")))
	})
})
