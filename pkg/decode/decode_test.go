package decode_test

import (
	"fmt"
	"time"

	"github.com/jackc/pgtype"
	"github.com/lawrencejones/pglake/pkg/decode"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Decoder", func() {
	mappedOIDs := map[uint32]int{}
	for _, mapping := range decode.Mappings {
		mappedOIDs[mapping.OID] = mappedOIDs[mapping.OID] + 1
	}

	decode.EachMapping(func(name string, mapping decode.TypeMapping) {
		It(fmt.Sprintf("OID %s (%v) has a single mapping", name, mapping.OID), func() {
			Expect(mappedOIDs[mapping.OID]).To(Equal(1), "multiple mappings for OID")
		})

		It(fmt.Sprintf("OID %s (%v) has a kind", name, mapping.OID), func() {
			Expect(mapping.Kind).NotTo(BeEmpty())
		})
	})

	var decoder decode.Decoder

	BeforeEach(func() {
		decoder = decode.NewDecoder(decode.Mappings)
	})

	Describe(".ScannerFor()", func() {
		It("returns an UnregisteredType for unknown OIDs", func() {
			_, _, err := decoder.ScannerFor(pgtype.IntervalOID)
			Expect(err).To(BeAssignableToTypeOf(&decode.UnregisteredType{}))
		})

		It("returns a fresh scanner and destination", func() {
			scanner, dest, err := decoder.ScannerFor(pgtype.Int8OID)
			Expect(err).NotTo(HaveOccurred())
			Expect(scanner).To(BeAssignableToTypeOf(&pgtype.Int8{}))
			Expect(dest).To(BeAssignableToTypeOf(new(int64)))
		})
	})

	Describe("TypeMapping.Decode()", func() {
		It("decodes present values into native types", func() {
			mapping, err := decoder.MappingFor(pgtype.TimestamptzOID)
			Expect(err).NotTo(HaveOccurred())

			at := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
			scanner := mapping.NewScanner()
			Expect(scanner.Set(at)).To(Succeed())

			value, err := mapping.Decode(scanner)
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(BeTemporally("==", at))
		})

		It("decodes infinite timestamps to the representable bounds", func() {
			mapping, err := decoder.MappingFor(pgtype.TimestamptzOID)
			Expect(err).NotTo(HaveOccurred())

			scanner := mapping.NewScanner()
			Expect(scanner.Scan("infinity")).To(Succeed())
			Expect(mapping.Decode(scanner)).To(Equal(decode.MaxTime))

			Expect(scanner.Scan("-infinity")).To(Succeed())
			Expect(mapping.Decode(scanner)).To(Equal(decode.MinTime))
		})

		It("decodes infinite dates to the representable bounds", func() {
			mapping, err := decoder.MappingFor(pgtype.DateOID)
			Expect(err).NotTo(HaveOccurred())

			scanner := mapping.NewScanner()
			Expect(scanner.Scan("infinity")).To(Succeed())
			Expect(mapping.Decode(scanner)).To(Equal(decode.MaxTime))
		})

		It("decodes NULL as nil", func() {
			mapping, err := decoder.MappingFor(pgtype.TextOID)
			Expect(err).NotTo(HaveOccurred())

			scanner := mapping.NewScanner()
			Expect(scanner.Set(nil)).To(Succeed())

			value, err := mapping.Decode(scanner)
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(BeNil())
		})
	})
})
