package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/raushankrgupta/price-tracker/scrapers"
	"github.com/raushankrgupta/price-tracker/scrapers/base"
)

func main() {
	urls := os.Args[1:]
	if len(urls) == 0 {
		urls = []string{
			"https://amzn.in/d/8sCIA5h",
			"https://www.flipkart.com/vebnor-solid-men-round-neck-pink-t-shirt/p/itm23ecb29dccd75?pid=TSHH84X4FN4VZECF",
			"https://www.myntra.com/tshirts/h%26m/hm-men-white-solid-cotton-pure-cotton-t-shirt-regular-fit/11468714/buy",
			"https://www.tatacliq.com/thomas-scott-black-regular-fit-checks-shirt/p-mp000000027887447",
			"https://peterengland.abfrl.in/p/men-blue-slim-fit-shirt-39903346.html?source=plp",
		}
	}

	engine := base.NewBaseScraper()
	if os.Getenv("CHROME_ENABLED") != "false" {
		engine.Browser = base.NewBrowser(os.Getenv("CHROME_PATH"))
	}
	scraper := scrapers.NewScraper(engine, scrapers.DefaultRegistry(), scrapers.Options{})
	defer scraper.Close()

	for _, u := range urls {
		fmt.Printf("Testing URL: %s\n", u)
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		sample, err := scraper.Fetch(ctx, u)
		cancel()
		if err != nil {
			log.Printf("Failed to scrape product: %v\n", err)
			continue
		}

		b, _ := json.MarshalIndent(sample, "", "  ")
		fmt.Printf("Sample: %s\n", string(b))
		fmt.Println("--------------------------------------------------")
	}
}
