package hmi

// Carousel is cyclic page order with one front page.
// Next only moves position, order changes only on Reset.
type Carousel struct {
	pages []Page
	pos   int
}

func NewCarousel(pages ...Page) *Carousel {
	if len(pages) == 0 {
		panic("code error carousel without pages")
	}
	return &Carousel{pages: append([]Page(nil), pages...)}
}

func (self *Carousel) Front() Page { return self.pages[self.pos] }

func (self *Carousel) Next() Page {
	self.pos = (self.pos + 1) % len(self.pages)
	return self.Front()
}

func (self *Carousel) Reset(order []Page) {
	if len(order) == 0 {
		panic("code error carousel reset empty")
	}
	self.pages = append(self.pages[:0], order...)
	self.pos = 0
}

func (self *Carousel) IsFront(p Page) bool { return self.Front() == p }

func (self *Carousel) Order() []Page {
	result := make([]Page, 0, len(self.pages))
	for i := range self.pages {
		result = append(result, self.pages[(self.pos+i)%len(self.pages)])
	}
	return result
}
