// Copyright 2018-2024 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

package workingcopy_test

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cs3org/cs3api4lab/pkg/auth"
	"github.com/cs3org/cs3api4lab/pkg/gateway"
	"github.com/cs3org/cs3api4lab/pkg/gateway/gatewaytest"
	"github.com/cs3org/cs3api4lab/pkg/lock"
	"github.com/cs3org/cs3api4lab/pkg/reference"
	"github.com/cs3org/cs3api4lab/pkg/share"
	"github.com/cs3org/cs3api4lab/pkg/workingcopy"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const (
	copyTTL = 60 * time.Second
	lockTTL = 150 * time.Second
	docPath = "/home/einstein/doc.txt"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type actor struct {
	client *gateway.Client
	shares *share.Engine
	locks  lock.Strategy
	wc     *workingcopy.Manager
}

var _ = Describe("Manager", func() {
	var (
		ctx      context.Context
		g        *gatewaytest.Gateway
		clk      *clock
		einstein *actor
		marie    *actor
		pierre   *actor
		docID    *provider.ResourceId
	)

	newActor := func(username, secret string) *actor {
		c := gateway.New(g, auth.NewBasic(g, "basic", username, secret), gateway.Options{})
		home := "/home/" + username
		r := reference.NewResolver(home, []string{"/home", "/reva"})
		a := &actor{
			client: c,
			shares: share.NewEngine(c, r, share.NewGatewayDirectory(c, 0), true),
			locks:  lock.NewMetadata(c, lockTTL, lock.WithClock(clk.Now)),
		}
		a.wc = workingcopy.NewManager(c, r, a.shares, a.locks, workingcopy.Options{
			HomeDir: home,
			CopyTTL: copyTTL,
			Now:     clk.Now,
		})
		return a
	}

	shareWith := func(p, idp, opaqueID, role string) {
		_, err := einstein.shares.Create(ctx, share.CreateRequest{
			Path:            p,
			GranteeIdp:      idp,
			GranteeOpaqueID: opaqueID,
			Role:            role,
			GranteeType:     share.GranteeUser,
		})
		Expect(err).ToNot(HaveOccurred())
	}

	copyRecord := func(username string) string {
		return g.Metadata(docPath)[workingcopy.CopyKey(username)]
	}

	decodedRecord := func(username string) *workingcopy.CopyRecord {
		r, err := workingcopy.DecodeCopyRecord(copyRecord(username))
		Expect(err).ToNot(HaveOccurred())
		return r
	}

	index := func(username string) []string {
		data, ok := g.Content("/home/" + username + "/.locks")
		if !ok {
			return nil
		}
		var paths []string
		Expect(json.Unmarshal(data, &paths)).To(Succeed())
		return paths
	}

	copiesOf := func(username string) []string {
		var out []string
		for _, p := range g.Paths("/home/" + username) {
			if workingcopy.IsCopyOf(username, p) {
				out = append(out, p)
			}
		}
		return out
	}

	BeforeEach(func() {
		ctx = context.Background()
		clk = &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
		g = gatewaytest.New()
		g.SetNow(clk.Now)
		g.AddUser("einstein", "relativity")
		g.AddUser("marie", "radioactivity")
		g.AddUser("pierre", "piezoelectricity")
		docID = g.Put(docPath, "einstein", []byte("draft")).Id

		einstein = newActor("einstein", "relativity")
		marie = newActor("marie", "radioactivity")
		pierre = newActor("pierre", "piezoelectricity")

		shareWith("/doc.txt", gatewaytest.LocalIdp, "marie-id", "editor")
		shareWith("/doc.txt", gatewaytest.LocalIdp, "pierre-id", "viewer")
	})

	AfterEach(func() {
		g.Close()
	})

	Describe("OnOpenHook", func() {
		It("creates a working copy linked to the original", func() {
			cp, err := marie.wc.OnOpenHook(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(path.Dir(cp)).To(Equal("/home/marie"))
			Expect(path.Base(cp)).To(HavePrefix("copy-marie-"))

			content, ok := g.Content(cp)
			Expect(ok).To(BeTrue())
			Expect(string(content)).To(Equal("draft"))
			Expect(g.Metadata(cp)).To(HaveKeyWithValue(workingcopy.OriginalKey, reference.Wrap(docID)))

			rec := decodedRecord("marie")
			Expect(rec.Username).To(Equal("marie"))
			Expect(rec.OpaqueID).To(Equal("marie-id"))
			Expect(rec.CopyInfo).To(Equal(cp))
			Expect(rec.Created).To(BeTemporally("==", clk.Now()))
			Expect(index("marie")).To(Equal([]string{docPath}))
		})

		It("is idempotent and only advances the updated timestamp", func() {
			first, err := marie.wc.OnOpenHook(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())
			created := clk.Now()

			clk.Advance(10 * time.Second)
			second, err := marie.wc.OnOpenHook(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())

			Expect(second).To(Equal(first))
			Expect(copiesOf("marie")).To(HaveLen(1))
			rec := decodedRecord("marie")
			Expect(rec.Created).To(BeTemporally("==", created))
			Expect(rec.Updated).To(BeTemporally("==", created.Add(10*time.Second)))
			Expect(index("marie")).To(Equal([]string{docPath}))
		})

		It("refreshes the record when the working copy itself is opened", func() {
			cp, err := marie.wc.OnOpenHook(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())

			clk.Advance(20 * time.Second)
			got, err := marie.wc.OnOpenHook(ctx, cp, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(Equal(cp))
			Expect(decodedRecord("marie").Updated).To(BeTemporally("==", clk.Now()))
		})

		It("hands out no working copy for a shared folder", func() {
			Expect(einstein.client.CreateContainer(ctx, reference.PathRef("/home/einstein/proj"))).To(Succeed())
			shareWith("/proj", gatewaytest.LocalIdp, "marie-id", "editor")

			cp, err := marie.wc.OnOpenHook(ctx, "/home/einstein/proj", "")
			Expect(err).ToNot(HaveOccurred())
			Expect(cp).To(BeEmpty())
			Expect(copiesOf("marie")).To(BeEmpty())
		})

		It("accepts the original by id", func() {
			cp, err := marie.wc.OnOpenHook(ctx, docID.OpaqueId, docID.StorageId)
			Expect(err).ToNot(HaveOccurred())
			Expect(cp).To(HavePrefix("/home/marie/copy-marie-"))
		})

		It("leaves files of the owner alone", func() {
			cp, err := einstein.wc.OnOpenHook(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(cp).To(BeEmpty())
			Expect(copiesOf("einstein")).To(BeEmpty())
			Expect(g.Metadata(docPath)).ToNot(HaveKey(workingcopy.CopyKey("einstein")))
		})
	})

	Describe("OnCloseHook", func() {
		It("clears the record but keeps the working copy", func() {
			cp, err := marie.wc.OnOpenHook(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())

			Expect(marie.wc.OnCloseHook(ctx, cp, "")).To(Succeed())
			Expect(g.Metadata(docPath)).To(HaveKeyWithValue(workingcopy.CopyKey("marie"), ""))
			Expect(g.Exists(cp)).To(BeTrue())
		})

		It("ignores files that are not working copies", func() {
			_, err := marie.wc.OnOpenHook(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())

			Expect(marie.wc.OnCloseHook(ctx, docPath, "")).To(Succeed())
			Expect(copyRecord("marie")).ToNot(BeEmpty())
		})
	})

	Describe("GetMerger", func() {
		It("picks the oldest valid claimant", func() {
			_, err := marie.wc.OnOpenHook(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())
			clk.Advance(30 * time.Second)
			_, err = pierre.wc.OnOpenHook(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())

			merger, err := einstein.wc.GetMerger(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(merger).ToNot(BeNil())
			Expect(merger.Username).To(Equal("marie"))

			clk.Advance(35 * time.Second)
			merger, err = einstein.wc.GetMerger(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(merger.Username).To(Equal("pierre"))

			clk.Advance(copyTTL)
			merger, err = einstein.wc.GetMerger(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(merger).To(BeNil())
		})

		It("follows a working copy to its original", func() {
			cp, err := marie.wc.OnOpenHook(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())

			merger, err := marie.wc.GetMerger(ctx, cp, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(merger.Username).To(Equal("marie"))
		})

		It("ignores closed copies", func() {
			cp, err := marie.wc.OnOpenHook(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(marie.wc.OnCloseHook(ctx, cp, "")).To(Succeed())

			merger, err := einstein.wc.GetMerger(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(merger).To(BeNil())
		})
	})

	Describe("CheckLocks", func() {
		It("clears expired records and prunes the index", func() {
			_, err := marie.wc.OnOpenHook(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())

			Expect(marie.wc.CheckLocks(ctx)).To(Succeed())
			Expect(copyRecord("marie")).ToNot(BeEmpty())
			Expect(index("marie")).To(Equal([]string{docPath}))

			clk.Advance(copyTTL + time.Second)
			Expect(marie.wc.CheckLocks(ctx)).To(Succeed())
			Expect(g.Metadata(docPath)).To(HaveKeyWithValue(workingcopy.CopyKey("marie"), ""))
			Expect(index("marie")).To(BeEmpty())
		})

		It("drops originals that vanished", func() {
			_, err := marie.wc.OnOpenHook(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(einstein.client.Delete(ctx, reference.PathRef(docPath))).To(Succeed())

			Expect(marie.wc.CheckLocks(ctx)).To(Succeed())
			Expect(index("marie")).To(BeEmpty())
		})

		It("is a no-op without an index", func() {
			Expect(pierre.wc.CheckLocks(ctx)).To(Succeed())
			Expect(g.Exists("/home/pierre/.locks")).To(BeFalse())
		})
	})

	Describe("ResolveFilePath", func() {
		BeforeEach(func() {
			info, err := einstein.client.Stat(ctx, reference.PathRef(docPath))
			Expect(err).ToNot(HaveOccurred())
			Expect(einstein.locks.Acquire(ctx, info)).To(Succeed())
		})

		It("keeps the path for the lock holder", func() {
			p, err := einstein.wc.ResolveFilePath(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(p).To(Equal(docPath))
		})

		It("redirects to the mount dir when the directory is not writable", func() {
			p, err := marie.wc.ResolveFilePath(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(p).To(Equal("/home/marie/doc-marie.20240301120000-conflict.txt"))
		})

		It("redirects next to the file when the directory is writable", func() {
			Expect(einstein.client.CreateContainer(ctx, reference.PathRef("/home/einstein/project"))).To(Succeed())
			g.Put("/home/einstein/project/f.txt", "einstein", []byte("f"))
			shareWith("/project", gatewaytest.LocalIdp, "marie-id", "editor")
			info, err := einstein.client.Stat(ctx, reference.PathRef("/home/einstein/project/f.txt"))
			Expect(err).ToNot(HaveOccurred())
			Expect(einstein.locks.Acquire(ctx, info)).To(Succeed())

			p, err := marie.wc.ResolveFilePath(ctx, "/home/einstein/project/f.txt", "")
			Expect(err).ToNot(HaveOccurred())
			Expect(p).To(Equal("/home/einstein/project/f-marie.20240301120000-conflict.txt"))
		})

		It("writes through once the lock expired", func() {
			clk.Advance(lockTTL + time.Second)
			p, err := marie.wc.ResolveFilePath(ctx, docPath, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(p).To(Equal(docPath))
		})

		It("keeps new files where they were asked for", func() {
			p, err := marie.wc.ResolveFilePath(ctx, "/notes.txt", "")
			Expect(err).ToNot(HaveOccurred())
			Expect(p).To(Equal("/home/marie/notes.txt"))
		})
	})

	Describe("ConflictName", func() {
		It("inserts the user and timestamp before the extension", func() {
			Expect(workingcopy.ConflictName("f.txt", "marie", "1")).To(Equal("f-marie.1-conflict.txt"))
			Expect(workingcopy.ConflictName("archive.tar.gz", "marie", "1")).To(Equal("archive.tar-marie.1-conflict.gz"))
			Expect(workingcopy.ConflictName("Makefile", "marie", "1")).To(Equal("Makefile-marie.1-conflict"))
			Expect(workingcopy.ConflictName(".bashrc", "marie", "1")).To(Equal(".bashrc-marie.1-conflict"))
		})
	})

	Describe("IsCopyOf", func() {
		It("requires the id checksum right after the username", func() {
			Expect(workingcopy.IsCopyOf("bob", "/home/bob/copy-bob-1a2b3c4d-doc.txt")).To(BeTrue())
			Expect(workingcopy.IsCopyOf("bob-x", "/home/bob-x/copy-bob-x-1a2b3c4d-doc.txt")).To(BeTrue())
			Expect(workingcopy.IsCopyOf("bob", "/home/bob/copy-bob-x-1a2b3c4d-doc.txt")).To(BeFalse())
			Expect(workingcopy.IsCopyOf("bob", "/home/bob/copy-bob-notes.txt")).To(BeFalse())
			Expect(workingcopy.IsCopyOf("bob", "/home/bob/doc.txt")).To(BeFalse())
		})

		It("matches the names CopyName produces", func() {
			info, err := einstein.client.Stat(ctx, reference.PathRef(docPath))
			Expect(err).ToNot(HaveOccurred())
			Expect(workingcopy.IsCopyOf("marie", workingcopy.CopyName("marie", info))).To(BeTrue())
		})
	})

	Describe("CopyRecord codec", func() {
		It("stores the holder and the copy as percent-encoded JSON", func() {
			now := clk.Now()
			in := &workingcopy.CopyRecord{
				Record:   lock.Record{Username: "marie", Idp: "localhost", OpaqueID: "marie-id", Created: now, Updated: now},
				CopyInfo: "/home/marie/copy-marie-1-doc.txt",
			}
			s, err := workingcopy.EncodeCopyRecord(in)
			Expect(err).ToNot(HaveOccurred())
			Expect(strings.ContainsAny(s, "{}\"")).To(BeFalse())

			out, err := workingcopy.DecodeCopyRecord(s)
			Expect(err).ToNot(HaveOccurred())
			Expect(out.Username).To(Equal("marie"))
			Expect(out.CopyInfo).To(Equal(in.CopyInfo))
			Expect(out.Created).To(BeTemporally("==", now))
		})
	})
})
