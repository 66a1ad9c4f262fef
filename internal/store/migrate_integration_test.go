// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

//go:build integration

package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/classgate/classgate/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var migrator *store.Migrator

	BeforeAll(func() {
		var err error
		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(migrator.Close()).To(Succeed()) })
	})

	It("starts at version zero", func() {
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())

		pending, err := migrator.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(Equal([]uint{1, 2}))
	})

	It("applies every migration", func() {
		Expect(migrator.Up()).To(Succeed())

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(2)))
		Expect(dirty).To(BeFalse())

		Expect(migrator.Up()).To(Succeed(), "re-running Up is a no-op")
	})

	It("creates both account tables", func() {
		ctx := context.Background()
		pool, err := store.OpenPool(ctx, connStr, store.PoolConfig{})
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		for _, table := range []string{"students", "teachers"} {
			var exists bool
			err := pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
				table).Scan(&exists)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue(), table)
		}
	})

	It("steps down and back up", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))

		Expect(migrator.Steps(1)).To(Succeed())
		version, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(2)))
	})

	It("rolls everything back", func() {
		Expect(migrator.Down()).To(Succeed())
		applied, err := migrator.AppliedMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(applied).To(BeEmpty())
	})
})

var _ = Describe("OpenPool", func() {
	It("rejects an unparseable url", func() {
		_, err := store.OpenPool(context.Background(), "://nope", store.PoolConfig{})
		Expect(err).To(HaveOccurred())
	})
})
