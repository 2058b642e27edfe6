package sqlitepath

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResolveSQLitePath", func() {
	var origCwd string

	BeforeEach(func() {
		var err error
		origCwd, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		GinkgoT().Setenv("SPOOL_SQLITE", "")
		GinkgoT().Setenv("XDG_DATA_HOME", "")
	})

	AfterEach(func() {
		Expect(os.Chdir(origCwd)).To(Succeed())
	})

	It("returns the override untouched", func() {
		path, err := ResolveSQLitePath("/data/tapes.db")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/data/tapes.db"))
	})

	It("prefers SPOOL_SQLITE when set", func() {
		GinkgoT().Setenv("SPOOL_SQLITE", "/tmp/custom.db")

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/custom.db"))
	})

	It("resolves ~/.spool/spool.db when present", func() {
		homeDir := GinkgoT().TempDir()
		GinkgoT().Setenv("HOME", homeDir)
		Expect(os.Chdir(GinkgoT().TempDir())).To(Succeed())

		dbPath := filepath.Join(homeDir, ".spool", FileName)
		Expect(os.MkdirAll(filepath.Dir(dbPath), 0o755)).To(Succeed())
		Expect(os.WriteFile(dbPath, []byte("test"), 0o644)).To(Succeed())

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(dbPath))
	})

	It("prefers a local .spool/ database over the home one", func() {
		homeDir := GinkgoT().TempDir()
		GinkgoT().Setenv("HOME", homeDir)
		Expect(os.MkdirAll(filepath.Join(homeDir, ".spool"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(homeDir, ".spool", FileName), nil, 0o644)).To(Succeed())

		cwd := GinkgoT().TempDir()
		Expect(os.Chdir(cwd)).To(Succeed())
		Expect(os.MkdirAll(".spool", 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(".spool", FileName), nil, 0o644)).To(Succeed())

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(".spool", FileName)))
	})

	It("errors when nothing is found", func() {
		GinkgoT().Setenv("HOME", GinkgoT().TempDir())
		Expect(os.Chdir(GinkgoT().TempDir())).To(Succeed())

		_, err := ResolveSQLitePath("")
		Expect(err).To(MatchError(ContainSubstring("pass --sqlite")))
	})
})

var _ = Describe("DefaultPath", func() {
	It("places the database in the override directory", func() {
		dir := GinkgoT().TempDir()

		path, err := DefaultPath(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(HaveSuffix(filepath.Join(filepath.Base(dir), FileName)))
	})
})
