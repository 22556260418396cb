// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

//go:build integration

package auth_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/geekcraft/geekcraft/internal/auth"
)

var _ = Describe("Auth scenarios", func() {
	for _, bc := range backendCases() {
		Context("on the "+bc.name+" backend", func() {
			var svc *auth.Service

			BeforeEach(func() {
				svc, _ = newService(bc)
			})

			It("registers, logs in, validates and logs out", func() {
				reg := svc.Register(env.ctx, "alice", "secret1")
				Expect(reg.Success).To(BeTrue())
				Expect(reg.Message).To(Equal("User alice registered successfully"))

				login := svc.Login(env.ctx, "alice", "secret1")
				Expect(login.Success).To(BeTrue())
				Expect(login.Token).To(MatchRegexp(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`))

				sess := svc.ValidateToken(env.ctx, login.Token)
				Expect(sess).NotTo(BeNil())
				Expect(sess.Username).To(Equal("alice"))
				Expect(sess.ExpiresAt).To(BeTemporally("~", time.Now().Add(auth.DefaultSessionDuration), time.Minute))

				Expect(svc.Logout(env.ctx, login.Token)).To(Equal(auth.Response{Success: true, Message: "Logout successful"}))
				Expect(svc.ValidateToken(env.ctx, login.Token)).To(BeNil())
			})

			It("rejects invalid input with fixed messages", func() {
				Expect(svc.Register(env.ctx, "ab", "secret1").Message).
					To(Equal("Username must be between 3 and 32 characters"))
				Expect(svc.Register(env.ctx, "bob", "short").Message).
					To(Equal("Password must be at least 6 characters"))
				Expect(svc.Login(env.ctx, "bob", "secret1").Message).
					To(Equal("Invalid username or password"))
			})

			It("keeps the first registration on conflict", func() {
				Expect(svc.Register(env.ctx, "bob", "original").Success).To(BeTrue())
				Expect(svc.Register(env.ctx, "bob", "replacement")).
					To(Equal(auth.Response{Message: "Username already exists"}))
				Expect(svc.Login(env.ctx, "bob", "original").Success).To(BeTrue())
				Expect(svc.Login(env.ctx, "bob", "replacement").Success).To(BeFalse())
			})

			It("returns identical responses for unknown users and wrong passwords", func() {
				Expect(svc.Register(env.ctx, "alice", "secret1").Success).To(BeTrue())
				Expect(svc.Login(env.ctx, "alice", "nope-nope")).To(Equal(svc.Login(env.ctx, "mallory", "nope-nope")))
			})

			It("stores and finds usernames in any script", func() {
				for _, name := range []string{"josé", "élève"} {
					Expect(svc.Register(env.ctx, name, "secret1").Success).To(BeTrue())
					login := svc.Login(env.ctx, name, "secret1")
					Expect(login.Success).To(BeTrue())
					Expect(svc.ValidateToken(env.ctx, login.Token).Username).To(Equal(name))
				}
			})

			It("treats logout of an unknown token as success", func() {
				Expect(svc.Logout(env.ctx, "00000000-0000-0000-0000-000000000000").Success).To(BeTrue())
			})

			It("expires short sessions", func() {
				short, _ := newService(bc, auth.WithSessionDuration(300*time.Millisecond))
				Expect(short.Register(env.ctx, "carol", "secret1").Success).To(BeTrue())
				login := short.Login(env.ctx, "carol", "secret1")
				Expect(login.Success).To(BeTrue())
				Expect(short.ValidateToken(env.ctx, login.Token)).NotTo(BeNil())

				Eventually(func() *auth.Session {
					return short.ValidateToken(env.ctx, login.Token)
				}).WithTimeout(3 * time.Second).WithPolling(100 * time.Millisecond).Should(BeNil())

				Expect(short.CleanupExpiredSessions(env.ctx)).To(Succeed())
			})

			It("assigns distinct users to concurrent registrations", func() {
				const writers = 16
				var wg sync.WaitGroup
				results := make([]auth.Response, writers)
				for i := range writers {
					wg.Add(1)
					go func() {
						defer GinkgoRecover()
						defer wg.Done()
						results[i] = svc.Register(env.ctx, userName(i), "secret1")
					}()
				}
				wg.Wait()

				for i, r := range results {
					Expect(r.Success).To(BeTrue(), "writer %d: %s", i, r.Message)
				}
				for i := range writers {
					Expect(svc.Login(env.ctx, userName(i), "secret1").Success).To(BeTrue())
				}
			})
		})
	}
})

func userName(i int) string {
	return "player" + string(rune('a'+i))
}
