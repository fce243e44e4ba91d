package sqlstore

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("rebind", func() {
	It("leaves question marks alone for sqlite", func() {
		s := &Store{dialect: SQLite}
		Expect(s.rebind("SELECT 1 WHERE a = ? AND b = ?")).To(Equal("SELECT 1 WHERE a = ? AND b = ?"))
	})

	It("numbers placeholders for postgres", func() {
		s := &Store{dialect: Postgres}
		Expect(s.rebind("VALUES (?, ?, ?)")).To(Equal("VALUES ($1, $2, $3)"))
	})
})

var _ = Describe("time encoding", func() {
	It("keeps the zero time zero", func() {
		Expect(toMicros(fromMicros(0))).To(BeZero())
		Expect(fromMicros(toMicros(fromMicros(0))).IsZero()).To(BeTrue())
	})
})
