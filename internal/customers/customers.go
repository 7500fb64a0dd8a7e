// Package customers fabricates the customer dimension for the demo
// warehouse: synthetic names, US phone numbers, and loan-id associations
// whose customer ids line up with the transaction generator's id range.
package customers

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/fsi-demo/datakit/internal/domain"
)

var firstNames = []string{
	"James", "Mary", "John", "Patricia", "Robert", "Jennifer", "Michael", "Linda",
	"William", "Elizabeth", "David", "Barbara", "Richard", "Susan", "Joseph", "Jessica",
	"Thomas", "Sarah", "Christopher", "Karen", "Charles", "Nancy", "Daniel", "Lisa",
	"Matthew", "Betty", "Anthony", "Helen", "Mark", "Sandra", "Donald", "Donna",
	"Steven", "Carol", "Paul", "Ruth", "Andrew", "Sharon", "Joshua", "Michelle",
	"Kenneth", "Laura", "Kevin", "Brian", "Kimberly", "George", "Deborah", "Timothy",
	"Dorothy", "Ronald", "Jason", "Edward", "Jeffrey", "Ryan", "Jacob", "Gary",
	"Nicholas", "Eric", "Jonathan", "Stephen", "Larry", "Justin", "Scott", "Brandon",
	"Benjamin", "Samuel", "Amy", "Gregory", "Angela", "Alexander", "Emily", "Patrick",
	"Brenda", "Frank", "Emma", "Raymond", "Olivia", "Jack", "Cynthia",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
	"Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson", "Thomas",
	"Taylor", "Moore", "Jackson", "Martin", "Lee", "Perez", "Thompson", "White",
	"Harris", "Sanchez", "Clark", "Ramirez", "Lewis", "Robinson", "Walker", "Young",
	"Allen", "King", "Wright", "Scott", "Torres", "Nguyen", "Hill", "Flores",
	"Green", "Adams", "Nelson", "Baker", "Hall", "Rivera", "Campbell", "Mitchell",
	"Carter", "Roberts", "Gomez", "Phillips", "Evans", "Turner", "Diaz", "Parker",
	"Cruz", "Edwards", "Collins", "Reyes", "Stewart", "Morris", "Morales", "Murphy",
	"Cook", "Rogers", "Gutierrez", "Ortiz", "Morgan", "Cooper", "Peterson", "Bailey",
	"Reed", "Kelly", "Howard", "Ramos", "Kim", "Cox", "Ward", "Richardson",
	"Watson", "Brooks", "Chavez", "Wood", "Bennett", "Gray", "Mendoza", "Ruiz",
	"Hughes", "Price", "Alvarez", "Castillo", "Sanders", "Patel", "Myers",
}

// Metro-area codes keep the generated phone numbers plausible.
var areaCodes = []string{
	"212", "646", "917", "718", "347", "929",
	"415", "628", "650", "925", "510",
	"213", "323", "310", "424", "747",
	"305", "786", "954", "561", "239",
	"312", "773", "630", "708", "847",
	"617", "857", "781", "339", "508",
	"206", "253", "425", "360", "564",
	"303", "720", "970", "719",
	"404", "678", "770", "470",
	"512", "737", "713", "281", "832", "409",
}

// loanIDBase anchors the synthetic loan-id pool to the id pattern of the
// demo's mortgage dataset.
const loanIDBase = 361354

// Generator fabricates customer records.
type Generator struct {
	rng *rand.Rand
}

// New returns a customer generator. A nil rng gets a time-seeded source.
func New(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{rng: rng}
}

// Generate produces n customers with ids starting at idStart. Loan ids come
// from a pool smaller than n, so some customers share a loan (family members,
// co-signers) the way the mortgage dataset does.
func (g *Generator) Generate(n, idStart int) []domain.Customer {
	loanPool := g.loanPool(n)

	customers := make([]domain.Customer, 0, n)
	for i := 0; i < n; i++ {
		customers = append(customers, domain.Customer{
			CustomerID:  idStart + i,
			LoanID:      loanPool[g.rng.Intn(len(loanPool))],
			FirstName:   firstNames[g.rng.Intn(len(firstNames))],
			LastName:    lastNames[g.rng.Intn(len(lastNames))],
			PhoneNumber: g.phoneNumber(),
		})
	}
	return customers
}

// loanPool returns roughly 0.8n distinct loan ids so sharing occurs but stays
// the exception.
func (g *Generator) loanPool(n int) []string {
	size := n * 8 / 10
	if size < 1 {
		size = 1
	}
	pool := make([]string, size)
	for i := range pool {
		pool[i] = fmt.Sprintf("%d", loanIDBase+i)
	}
	return pool
}

func (g *Generator) phoneNumber() string {
	area := areaCodes[g.rng.Intn(len(areaCodes))]
	exchange := 200 + g.rng.Intn(800)
	number := 1000 + g.rng.Intn(9000)
	return fmt.Sprintf("(%s) %d-%d", area, exchange, number)
}

// WriteNDJSON encodes customers to w, one JSON object per line, ready for a
// warehouse load.
func WriteNDJSON(w io.Writer, customers []domain.Customer) error {
	enc := json.NewEncoder(w)
	for i, c := range customers {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("customers.WriteNDJSON: record %d: %w", i, err)
		}
	}
	return nil
}
